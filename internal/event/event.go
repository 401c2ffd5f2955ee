// Package event normalizes CloudTrail API-call events delivered through EventBridge.
package event

import (
	"time"

	"github.com/valyala/fastjson"
)

// Unknown is the fallback for any metadata field missing from the event.
const Unknown = "unknown"

var timeNow = time.Now

// Metadata is the flattened audit view of a CloudTrail event. Every field is populated.
type Metadata struct {
	AccountID   string `json:"accountId"`
	Region      string `json:"region"`
	EventTime   string `json:"eventTime"`
	EventName   string `json:"eventName"`
	UserType    string `json:"userType"`
	UserARN     string `json:"userArn"`
	PrincipalID string `json:"principalId"`
	SourceIP    string `json:"sourceIp"`
	UserAgent   string `json:"userAgent"`
}

// Event is a parsed inbound event.
type Event struct {
	// TableName is detail.requestParameters.tableName, empty when absent.
	TableName string
	Metadata  Metadata
}

// Parse extracts the table name and metadata from a raw event. It never fails:
// malformed or partial input yields fallback values.
func Parse(raw []byte) Event {
	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		v = nil
	}
	return Event{
		TableName: str(v, "detail", "requestParameters", "tableName"),
		Metadata:  normalize(v),
	}
}

// Normalize extracts only the metadata from a raw event.
func Normalize(raw []byte) Metadata {
	return Parse(raw).Metadata
}

// TableName extracts detail.requestParameters.tableName from a raw event.
func TableName(raw []byte) string {
	return Parse(raw).TableName
}

// normalize resolves account and region from the CloudTrail detail first and
// the EventBridge envelope second.
func normalize(v *fastjson.Value) Metadata {
	return Metadata{
		AccountID:   firstOf(str(v, "detail", "recipientAccountId"), str(v, "account")),
		Region:      firstOf(str(v, "detail", "awsRegion"), str(v, "region")),
		EventTime:   eventTime(v),
		EventName:   firstOf(str(v, "detail", "eventName")),
		UserType:    firstOf(str(v, "detail", "userIdentity", "type")),
		UserARN:     firstOf(str(v, "detail", "userIdentity", "arn")),
		PrincipalID: firstOf(str(v, "detail", "userIdentity", "principalId")),
		SourceIP:    firstOf(str(v, "detail", "sourceIPAddress")),
		UserAgent:   firstOf(str(v, "detail", "userAgent")),
	}
}

func eventTime(v *fastjson.Value) string {
	if t := str(v, "detail", "eventTime"); t != "" {
		return t
	}
	return timeNow().UTC().Format(time.RFC3339)
}

// str returns the string at the key path, or "" when missing or not a string.
func str(v *fastjson.Value, keys ...string) string {
	return string(v.GetStringBytes(keys...))
}

func firstOf(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return Unknown
}
