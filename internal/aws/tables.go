package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yairfalse/billing-enforcer/internal/enforcer"
)

// TableStore reads and deletes DynamoDB tables.
type TableStore struct {
	client DynamoDBAPI
}

// NewTableStore creates a TableStore.
func NewTableStore(client DynamoDBAPI) *TableStore {
	return &TableStore{client: client}
}

// DescribeTable returns the table's billing mode, or a NotFound lookup when
// DynamoDB reports ResourceNotFoundException.
func (s *TableStore) DescribeTable(ctx context.Context, name string) (enforcer.Lookup, error) {
	output, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return enforcer.NotFound(), nil
		}
		return enforcer.Lookup{}, err
	}
	if output.Table == nil {
		return enforcer.Lookup{}, fmt.Errorf("describe table %s: empty response", name)
	}

	return enforcer.Found(enforcer.Table{
		Name:        name,
		BillingMode: billingMode(output.Table.BillingModeSummary),
	}), nil
}

// DeleteTable deletes the table.
func (s *TableStore) DeleteTable(ctx context.Context, name string) error {
	_, err := s.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	return err
}

// billingMode maps DynamoDB's summary. Tables created before on-demand
// existed carry no summary and are provisioned.
func billingMode(summary *ddbtypes.BillingModeSummary) enforcer.BillingMode {
	if summary != nil && summary.BillingMode == ddbtypes.BillingModePayPerRequest {
		return enforcer.BillingOnDemand
	}
	return enforcer.BillingProvisioned
}

func isNotFound(err error) bool {
	var rnf *ddbtypes.ResourceNotFoundException
	return errors.As(err, &rnf)
}
