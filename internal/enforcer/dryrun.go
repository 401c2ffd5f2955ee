package enforcer

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunStore reads through to a real store but only logs deletions.
type DryRunStore struct {
	TableStore
}

// DeleteTable logs the deletion that would have happened.
func (s DryRunStore) DeleteTable(ctx context.Context, name string) error {
	zerolog.Ctx(ctx).Warn().Str("table", name).Msg("dry run: skipping delete")
	return nil
}

// LogBus writes broadcast events to the log instead of an event bus.
type LogBus struct{}

// PutEvent logs the event.
func (LogBus) PutEvent(ctx context.Context, detailType string, detail []byte) error {
	zerolog.Ctx(ctx).Info().
		Str("detail_type", detailType).
		RawJSON("detail", detail).
		Msg("dry run: event not published")
	return nil
}

// LogNotifier writes notifications to the log instead of SNS.
type LogNotifier struct{}

// Notify logs the notification.
func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	zerolog.Ctx(ctx).Info().
		Str("subject", n.Subject).
		Interface("attributes", n.Attributes).
		Msg("dry run: notification not sent")
	return nil
}
