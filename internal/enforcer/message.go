package enforcer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Broadcast constants.
const (
	DetailType    = "DynamoDB On-Demand Table Deleted"
	Reason        = "On-Demand billing mode not allowed"
	SubjectPrefix = "[COST ALERT] DynamoDB On-Demand Table Deleted: "
)

// Detail is the JSON body of the broadcast event.
type Detail struct {
	TableName            string      `json:"tableName"`
	Action               Action      `json:"action"`
	Reason               string      `json:"reason"`
	AccountID            string      `json:"accountId"`
	Region               string      `json:"region"`
	EventTime            string      `json:"eventTime"`
	TriggeredBy          TriggeredBy `json:"triggeredBy"`
	EnforcementTimestamp string      `json:"enforcementTimestamp"`
}

// TriggeredBy identifies the actor behind the original API call.
type TriggeredBy struct {
	UserARN     string `json:"userArn"`
	UserType    string `json:"userType"`
	PrincipalID string `json:"principalId"`
	SourceIP    string `json:"sourceIp"`
}

// Detail builds the broadcast body for a remediation outcome.
func (o Outcome) Detail() Detail {
	return Detail{
		TableName: o.TableName,
		Action:    o.Action,
		Reason:    Reason,
		AccountID: o.Metadata.AccountID,
		Region:    o.Metadata.Region,
		EventTime: o.Metadata.EventTime,
		TriggeredBy: TriggeredBy{
			UserARN:     o.Metadata.UserARN,
			UserType:    o.Metadata.UserType,
			PrincipalID: o.Metadata.PrincipalID,
			SourceIP:    o.Metadata.SourceIP,
		},
		EnforcementTimestamp: o.EnforcedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Summary is the human-readable description of a remediation outcome.
func (o Outcome) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DynamoDB table '%s' detected with On-Demand billing mode.\n", o.TableName)
	fmt.Fprintf(&b, "Account: %s\n", o.Metadata.AccountID)
	fmt.Fprintf(&b, "Region: %s\n", o.Metadata.Region)
	fmt.Fprintf(&b, "Created by: %s\n", o.Metadata.UserARN)
	fmt.Fprintf(&b, "Source IP: %s", o.Metadata.SourceIP)

	switch o.Action {
	case ActionDeleted:
		b.WriteString("\n\nACTION: TABLE DELETED.")
	case ActionDeleteFailed:
		fmt.Fprintf(&b, "\n\nACTION FAILED: %s", o.Failure)
	}
	if o.DryRun && o.Action.IsRemediation() {
		b.WriteString(" (dry run, table not deleted)")
	}
	return b.String()
}

// Body is the response body reported to the trigger.
func (o Outcome) Body() string {
	switch o.Action {
	case ActionSkippedNoTable:
		return "No table name"
	case ActionSkippedExempt:
		return fmt.Sprintf("Table %s exempt", o.TableName)
	case ActionSkippedNotFound:
		return fmt.Sprintf("Table %s not found", o.TableName)
	case ActionSkippedCompliant:
		return fmt.Sprintf("Table %s is already provisioned", o.TableName)
	default:
		return o.Summary()
	}
}

// Response converts the outcome into the trigger response.
func (o Outcome) Response() Response {
	return Response{StatusCode: 200, Body: o.Body()}
}

// Notification builds the operator notification for a remediation outcome.
func (o Outcome) Notification() Notification {
	return Notification{
		Subject: SubjectPrefix + o.TableName,
		Message: o.Summary(),
		Attributes: map[string]string{
			"accountId": o.Metadata.AccountID,
			"region":    o.Metadata.Region,
			"tableName": o.TableName,
			"action":    string(o.Action),
		},
	}
}

func marshalDetail(d Detail) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal detail: %w", err)
	}
	return data, nil
}
