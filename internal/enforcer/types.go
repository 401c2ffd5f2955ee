package enforcer

import (
	"context"
	"time"

	"github.com/yairfalse/billing-enforcer/internal/event"
)

// BillingMode is the capacity model of a DynamoDB table.
type BillingMode string

// Billing modes. Anything DynamoDB reports other than PAY_PER_REQUEST is
// treated as provisioned.
const (
	BillingProvisioned BillingMode = "PROVISIONED"
	BillingOnDemand    BillingMode = "ON_DEMAND"
)

// Table is the current configuration of a table as reported by DynamoDB.
type Table struct {
	Name        string
	BillingMode BillingMode
}

// Violates reports whether the table breaks the billing policy.
func (t Table) Violates() bool {
	return t.BillingMode == BillingOnDemand
}

// LookupStatus tags the result of a table lookup.
type LookupStatus int

// Lookup statuses.
const (
	LookupFound LookupStatus = iota
	LookupNotFound
)

// Lookup is the result of a successful describe call. Table is set only when Status is LookupFound.
type Lookup struct {
	Status LookupStatus
	Table  Table
}

// Found returns a lookup for an existing table.
func Found(t Table) Lookup {
	return Lookup{Status: LookupFound, Table: t}
}

// NotFound returns a lookup for a table that does not exist.
func NotFound() Lookup {
	return Lookup{Status: LookupNotFound}
}

// TableStore is the authoritative source of table state.
type TableStore interface {
	// DescribeTable returns the table state. A missing table is a NotFound
	// lookup, not an error; errors are infrastructure failures.
	DescribeTable(ctx context.Context, name string) (Lookup, error)
	DeleteTable(ctx context.Context, name string) error
}

// EventBus publishes structured enforcement events.
type EventBus interface {
	PutEvent(ctx context.Context, detailType string, detail []byte) error
}

// Notification is a human-readable message with filterable attributes.
type Notification struct {
	Subject    string
	Message    string
	Attributes map[string]string
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Action is what the enforcer did with a table.
type Action string

// Actions.
const (
	ActionDeleted          Action = "DELETED"
	ActionDeleteFailed     Action = "DELETE_FAILED"
	ActionSkippedNoTable   Action = "SKIPPED_NO_TABLE"
	ActionSkippedExempt    Action = "SKIPPED_EXEMPT"
	ActionSkippedNotFound  Action = "SKIPPED_NOT_FOUND"
	ActionSkippedCompliant Action = "SKIPPED_COMPLIANT"
)

// IsRemediation returns true for actions that attempted a deletion.
func (a Action) IsRemediation() bool {
	return a == ActionDeleted || a == ActionDeleteFailed
}

// Outcome is the single result of one invocation.
type Outcome struct {
	TableName string
	Action    Action
	// ExemptPrefix is the matching prefix for ActionSkippedExempt.
	ExemptPrefix string
	// Failure is the deletion error text for ActionDeleteFailed.
	Failure    string
	// DryRun is set when the delete and broadcasts were only logged.
	DryRun     bool
	Metadata   event.Metadata
	EnforcedAt time.Time
}

// Response is returned to the Lambda runtime.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}
