// Package enforcer deletes DynamoDB tables created or switched to On-Demand
// billing and reports what it did.
package enforcer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/billing-enforcer/internal/event"
	"github.com/yairfalse/billing-enforcer/internal/filter"
)

// Enforcer runs the billing-mode policy for one event at a time. It holds no
// per-event state and is safe for concurrent use when its dependencies are.
type Enforcer struct {
	store      TableStore
	bus        EventBus
	notifier   Notifier
	exemptions *filter.Exemptions
	dryRun     bool
	metrics    *Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// Config wires the enforcer's collaborators. Notifier may be nil to disable notifications.
type Config struct {
	Store      TableStore
	Bus        EventBus
	Notifier   Notifier
	Exemptions *filter.Exemptions
	// DryRun marks outcomes as not applied. The caller supplies non-mutating sinks.
	DryRun bool
}

// New creates an Enforcer.
func New(cfg Config) (*Enforcer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("table store is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if cfg.Exemptions == nil {
		cfg.Exemptions = filter.New(nil)
	}

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	return &Enforcer{
		store:      cfg.Store,
		bus:        cfg.Bus,
		notifier:   cfg.Notifier,
		exemptions: cfg.Exemptions,
		dryRun:     cfg.DryRun,
		metrics:    metrics,
		tracer:     otel.Tracer("billing-enforcer"),
		now:        time.Now,
	}, nil
}

// Handle processes one raw event. Every decided outcome is a 200 response;
// only a failed table lookup is returned as an error so the trigger redelivers.
func (e *Enforcer) Handle(ctx context.Context, raw []byte) (Response, error) {
	outcome, err := e.Enforce(ctx, event.Parse(raw))
	if err != nil {
		return Response{}, err
	}
	return outcome.Response(), nil
}

// Enforce runs the policy pipeline for a parsed event.
func (e *Enforcer) Enforce(ctx context.Context, ev event.Event) (Outcome, error) {
	start := e.now()
	ctx, span := e.tracer.Start(ctx, "enforcer.enforce", trace.WithAttributes(
		attribute.String("table.name", ev.TableName),
		attribute.String("event.name", ev.Metadata.EventName),
		attribute.String("cloud.account.id", ev.Metadata.AccountID),
		attribute.String("cloud.region", ev.Metadata.Region),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx).With().
		Ctx(ctx).
		Str("table", ev.TableName).
		Str("account_id", ev.Metadata.AccountID).
		Str("region", ev.Metadata.Region).
		Str("event_name", ev.Metadata.EventName).
		Str("event_time", ev.Metadata.EventTime).
		Str("user_arn", ev.Metadata.UserARN).
		Str("source_ip", ev.Metadata.SourceIP).
		Logger()
	ctx = logger.WithContext(ctx)

	outcome, err := e.decide(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "describe table failed")
		logger.Error().Err(err).Msg("error processing event")
		return Outcome{}, err
	}

	if outcome.Action.IsRemediation() {
		e.broadcast(ctx, outcome)
		e.notify(ctx, outcome)
	}

	span.SetAttributes(attribute.String("enforcer.action", string(outcome.Action)))
	e.metrics.RecordOutcome(ctx, outcome.Action, e.now().Sub(start))

	logger.Info().
		Str("action", string(outcome.Action)).
		Str("failure", outcome.Failure).
		Msg("event handled")

	return outcome, nil
}

// decide walks the pipeline up to and including the delete attempt.
func (e *Enforcer) decide(ctx context.Context, ev event.Event) (Outcome, error) {
	logger := zerolog.Ctx(ctx)
	outcome := Outcome{
		TableName: ev.TableName,
		Metadata:  ev.Metadata,
	}

	if ev.TableName == "" {
		logger.Info().Msg("no table name found in event")
		return e.finish(outcome, ActionSkippedNoTable), nil
	}

	logger.Info().Msg("processing table")

	if prefix, ok := e.exemptions.Match(ev.TableName); ok {
		logger.Info().Str("prefix", prefix).Msg("table is exempt")
		outcome.ExemptPrefix = prefix
		return e.finish(outcome, ActionSkippedExempt), nil
	}

	lookup, err := e.describe(ctx, ev.TableName)
	if err != nil {
		return Outcome{}, fmt.Errorf("describe table %s: %w", ev.TableName, err)
	}

	if lookup.Status == LookupNotFound {
		logger.Info().Msg("table not found, may have been deleted")
		return e.finish(outcome, ActionSkippedNotFound), nil
	}

	logger.Info().Str("billing_mode", string(lookup.Table.BillingMode)).Msg("resolved billing mode")

	if !lookup.Table.Violates() {
		return e.finish(outcome, ActionSkippedCompliant), nil
	}

	return e.remediate(ctx, outcome), nil
}

func (e *Enforcer) describe(ctx context.Context, name string) (Lookup, error) {
	ctx, span := e.tracer.Start(ctx, "dynamodb.describe_table")
	defer span.End()

	lookup, err := e.store.DescribeTable(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return lookup, err
}

// remediate makes exactly one delete attempt. A failed delete is recorded in
// the outcome and never returned.
func (e *Enforcer) remediate(ctx context.Context, outcome Outcome) Outcome {
	ctx, span := e.tracer.Start(ctx, "dynamodb.delete_table")
	defer span.End()

	logger := zerolog.Ctx(ctx)

	if err := e.store.DeleteTable(ctx, outcome.TableName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome.Failure = err.Error()
		outcome = e.finish(outcome, ActionDeleteFailed)
		logger.Error().Ctx(ctx).Err(err).Msg(outcome.Summary())
		return outcome
	}

	outcome = e.finish(outcome, ActionDeleted)
	logger.Warn().Ctx(ctx).Msg(outcome.Summary())
	return outcome
}

func (e *Enforcer) finish(outcome Outcome, action Action) Outcome {
	outcome.Action = action
	outcome.DryRun = e.dryRun
	outcome.EnforcedAt = e.now().UTC()
	return outcome
}

// broadcast publishes the outcome to the event bus. Failures are logged only.
func (e *Enforcer) broadcast(ctx context.Context, outcome Outcome) {
	ctx, span := e.tracer.Start(ctx, "eventbridge.put_events")
	defer span.End()

	logger := zerolog.Ctx(ctx)

	detail, err := marshalDetail(outcome.Detail())
	if err == nil {
		err = e.bus.PutEvent(ctx, DetailType, detail)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.RecordSideEffectFailure(ctx, "eventbridge")
		logger.Error().Ctx(ctx).Err(err).Msg("failed to broadcast enforcement event")
		return
	}

	logger.Info().Ctx(ctx).RawJSON("detail", detail).Msg("enforcement event broadcast")
}

// notify sends the operator notification when a notifier is configured. Failures are logged only.
func (e *Enforcer) notify(ctx context.Context, outcome Outcome) {
	logger := zerolog.Ctx(ctx)

	if e.notifier == nil {
		logger.Debug().Msg("notifications disabled")
		return
	}

	ctx, span := e.tracer.Start(ctx, "sns.publish")
	defer span.End()

	if err := e.notifier.Notify(ctx, outcome.Notification()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.RecordSideEffectFailure(ctx, "sns")
		logger.Error().Ctx(ctx).Err(err).Msg("failed to send notification")
		return
	}

	logger.Info().Ctx(ctx).Msg("notification sent")
}
