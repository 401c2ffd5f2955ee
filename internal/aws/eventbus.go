package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// EventBus publishes enforcement events to an EventBridge bus.
type EventBus struct {
	client  EventBridgeAPI
	busName string
	source  string
}

// NewEventBus creates an EventBus for the given bus and event source.
func NewEventBus(client EventBridgeAPI, busName, source string) *EventBus {
	return &EventBus{client: client, busName: busName, source: source}
}

// PutEvent publishes a single event. A rejected entry is returned as an error.
func (b *EventBus) PutEvent(ctx context.Context, detailType string, detail []byte) error {
	output, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				Source:       aws.String(b.source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(detail)),
				EventBusName: aws.String(b.busName),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put events: %w", err)
	}

	if output.FailedEntryCount > 0 {
		for _, entry := range output.Entries {
			if entry.ErrorCode != nil {
				return fmt.Errorf("put events: entry rejected: %s: %s",
					aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("put events: %d entries failed", output.FailedEntryCount)
	}

	return nil
}
