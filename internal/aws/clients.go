// Package aws adapts the AWS SDK clients to the enforcer's store, bus and notifier interfaces.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Clients holds the SDK clients, built once per process and shared across invocations.
type Clients struct {
	DynamoDB    DynamoDBAPI
	EventBridge EventBridgeAPI
	SNS         SNSAPI
}

// NewClients loads the default AWS configuration. An empty region defers to
// the environment (AWS_REGION inside Lambda).
func NewClients(ctx context.Context, region string) (*Clients, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Clients{
		DynamoDB:    dynamodb.NewFromConfig(awsCfg),
		EventBridge: eventbridge.NewFromConfig(awsCfg),
		SNS:         sns.NewFromConfig(awsCfg),
	}, nil
}
