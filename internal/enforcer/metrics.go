package enforcer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds enforcement metrics using OTEL semantic conventions.
type Metrics struct {
	outcomes           metric.Int64Counter
	sideEffectFailures metric.Int64Counter
	handleDuration     metric.Float64Histogram
}

// NewMetrics creates enforcement metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetricsWithProvider(otel.GetMeterProvider())
}

func newMetricsWithProvider(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("billing-enforcer")

	outcomes, err := meter.Int64Counter(
		"billing_enforcer.outcomes",
		metric.WithDescription("Number of handled events by enforcement action"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	sideEffectFailures, err := meter.Int64Counter(
		"billing_enforcer.side_effect.failures",
		metric.WithDescription("Number of failed broadcast or notification attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	handleDuration, err := meter.Float64Histogram(
		"billing_enforcer.handle.duration",
		metric.WithDescription("Duration of event handling"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		outcomes:           outcomes,
		sideEffectFailures: sideEffectFailures,
		handleDuration:     handleDuration,
	}, nil
}

// RecordOutcome records one handled event.
func (m *Metrics) RecordOutcome(ctx context.Context, action Action, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("action", string(action)))
	m.outcomes.Add(ctx, 1, attrs)
	m.handleDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSideEffectFailure records a failed broadcast or notification.
func (m *Metrics) RecordSideEffectFailure(ctx context.Context, sink string) {
	m.sideEffectFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
