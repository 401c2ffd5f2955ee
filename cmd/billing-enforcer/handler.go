package main

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/billing-enforcer/internal/enforcer"
)

// eventHandler is the Lambda entry point.
type eventHandler func(ctx context.Context, raw json.RawMessage) (enforcer.Response, error)

// newHandler binds a per-invocation logger and flushes telemetry after each event.
func newHandler(enf *enforcer.Enforcer, tel flusher) eventHandler {
	return func(ctx context.Context, raw json.RawMessage) (enforcer.Response, error) {
		logger := log.Logger.With().Logger()
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			logger = logger.With().Str("request_id", lc.AwsRequestID).Logger()
		}
		ctx = logger.WithContext(ctx)

		logger.Debug().RawJSON("event", compactJSON(raw)).Msg("received event")

		resp, err := enf.Handle(ctx, raw)

		if tel != nil {
			if ferr := tel.ForceFlush(ctx); ferr != nil {
				logger.Warn().Err(ferr).Msg("telemetry flush failed")
			}
		}
		return resp, err
	}
}

// compactJSON strips insignificant whitespace from raw, or returns it as a
// JSON string when it does not parse.
func compactJSON(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.Bytes()
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
