package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awsadapter "github.com/yairfalse/billing-enforcer/internal/aws"
	"github.com/yairfalse/billing-enforcer/internal/config"
	"github.com/yairfalse/billing-enforcer/internal/enforcer"
)

// fakeDynamoDB keeps table billing modes in memory.
type fakeDynamoDB struct {
	tables  map[string]ddbtypes.BillingMode
	deletes []string
}

func (f *fakeDynamoDB) DescribeTable(_ context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	mode, ok := f.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, &ddbtypes.ResourceNotFoundException{Message: aws.String("Requested resource not found")}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &ddbtypes.TableDescription{
			TableName:          params.TableName,
			BillingModeSummary: &ddbtypes.BillingModeSummary{BillingMode: mode},
		},
	}, nil
}

func (f *fakeDynamoDB) DeleteTable(_ context.Context, params *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	name := aws.ToString(params.TableName)
	f.deletes = append(f.deletes, name)
	delete(f.tables, name)
	return &dynamodb.DeleteTableOutput{}, nil
}

type fakeEventBridge struct {
	inputs []*eventbridge.PutEventsInput
}

func (f *fakeEventBridge) PutEvents(_ context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, params)
	return &eventbridge.PutEventsOutput{}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sns.PublishOutput{}, nil
}

type countingFlusher struct {
	calls int
}

func (c *countingFlusher) ForceFlush(context.Context) error {
	c.calls++
	return nil
}

type harness struct {
	ddb     *fakeDynamoDB
	events  *fakeEventBridge
	sns     *fakeSNS
	clients *awsadapter.Clients
}

func newHarness(tables map[string]ddbtypes.BillingMode) *harness {
	h := &harness{
		ddb:    &fakeDynamoDB{tables: tables},
		events: &fakeEventBridge{},
		sns:    &fakeSNS{},
	}
	h.clients = &awsadapter.Clients{DynamoDB: h.ddb, EventBridge: h.events, SNS: h.sns}
	return h
}

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadWith("", func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

const analyticsEvent = `{
  "account": "123456789012",
  "region": "us-west-2",
  "detail": {
    "eventName": "CreateTable",
    "eventTime": "2025-01-14T12:00:00Z",
    "awsRegion": "us-west-2",
    "recipientAccountId": "123456789012",
    "sourceIPAddress": "192.168.1.1",
    "userIdentity": {"type": "IAMUser", "arn": "arn:aws:iam::123456789012:user/dev", "principalId": "AIDAEXAMPLE"},
    "requestParameters": {"tableName": "analytics-raw"}
  }
}`

func TestHandler_DeletesAnalyticsRaw(t *testing.T) {
	h := newHarness(map[string]ddbtypes.BillingMode{"analytics-raw": ddbtypes.BillingModePayPerRequest})
	cfg := testConfig(t, map[string]string{
		config.EnvTopicARN:       "arn:aws:sns:us-west-2:123456789012:cost-alerts",
		config.EnvExemptPrefixes: "terraform-",
	})

	enf, err := buildEnforcer(cfg, h.clients, false)
	require.NoError(t, err)

	flush := &countingFlusher{}
	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	resp, err := newHandler(enf, flush)(ctx, json.RawMessage(analyticsEvent))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Body, "analytics-raw")
	assert.Contains(t, resp.Body, "DELETED")
	assert.Equal(t, []string{"analytics-raw"}, h.ddb.deletes)
	assert.Equal(t, 1, flush.calls)

	require.Len(t, h.events.inputs, 1)
	entry := h.events.inputs[0].Entries[0]
	assert.Equal(t, "default", aws.ToString(entry.EventBusName))
	assert.Equal(t, config.DefaultEventSource, aws.ToString(entry.Source))
	assert.Equal(t, enforcer.DetailType, aws.ToString(entry.DetailType))

	var detail enforcer.Detail
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, enforcer.ActionDeleted, detail.Action)
	assert.Equal(t, "analytics-raw", detail.TableName)

	require.Len(t, h.sns.inputs, 1)
	pub := h.sns.inputs[0]
	assert.Contains(t, aws.ToString(pub.Subject), "analytics-raw")
	assert.Equal(t, "123456789012", aws.ToString(pub.MessageAttributes["accountId"].StringValue))

	again, err := newHandler(enf, flush)(ctx, json.RawMessage(analyticsEvent))
	require.NoError(t, err)
	assert.Contains(t, again.Body, "not found")
	assert.Len(t, h.ddb.deletes, 1)
}

func TestHandler_NoTopicSkipsSNS(t *testing.T) {
	h := newHarness(map[string]ddbtypes.BillingMode{"analytics-raw": ddbtypes.BillingModePayPerRequest})
	enf, err := buildEnforcer(testConfig(t, nil), h.clients, false)
	require.NoError(t, err)

	resp, err := newHandler(enf, nil)(context.Background(), json.RawMessage(analyticsEvent))

	require.NoError(t, err)
	assert.Contains(t, resp.Body, "DELETED")
	assert.Len(t, h.events.inputs, 1)
	assert.Empty(t, h.sns.inputs)
}

func TestBuildEnforcer_DryRun(t *testing.T) {
	h := newHarness(map[string]ddbtypes.BillingMode{"analytics-raw": ddbtypes.BillingModePayPerRequest})
	cfg := testConfig(t, map[string]string{config.EnvTopicARN: "arn:aws:sns:us-west-2:123456789012:cost-alerts"})

	enf, err := buildEnforcer(cfg, h.clients, true)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, invoke(context.Background(), enf, []byte(analyticsEvent), &out))

	var resp enforcer.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Body, "(dry run, table not deleted)")

	assert.Empty(t, h.ddb.deletes)
	assert.Contains(t, h.ddb.tables, "analytics-raw")
	assert.Empty(t, h.events.inputs)
	assert.Empty(t, h.sns.inputs)
}

func TestInvoke_ExemptTable(t *testing.T) {
	h := newHarness(map[string]ddbtypes.BillingMode{"terraform-lock": ddbtypes.BillingModePayPerRequest})
	cfg := testConfig(t, map[string]string{config.EnvExemptPrefixes: "terraform-"})
	enf, err := buildEnforcer(cfg, h.clients, false)
	require.NoError(t, err)

	raw := strings.ReplaceAll(analyticsEvent, "analytics-raw", "terraform-lock")
	var out bytes.Buffer
	require.NoError(t, invoke(context.Background(), enf, []byte(raw), &out))

	assert.Contains(t, out.String(), "Table terraform-lock exempt")
	assert.Empty(t, h.ddb.deletes)
}

func TestReadEvent(t *testing.T) {
	data, err := readEvent("-", strings.NewReader(`{"detail":{}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"detail":{}}`, string(data))

	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(analyticsEvent), 0644))
	data, err = readEvent(path, nil)
	require.NoError(t, err)
	assert.Equal(t, analyticsEvent, string(data))

	_, err = readEvent(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BILLING_ENFORCER_TEST_VAR=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("BILLING_ENFORCER_TEST_VAR") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("BILLING_ENFORCER_TEST_VAR"))
	assert.Equal(t, "from-file", envOr("BILLING_ENFORCER_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", envOr("BILLING_ENFORCER_UNSET_VAR", "fallback"))
}

func TestCompactJSON(t *testing.T) {
	pretty := "{\n  \"detail\": {\n    \"eventName\": \"CreateTable\"\n  },\n  \"region\": \"us-west-2\"\n}\n"
	assert.Equal(t, `{"detail":{"eventName":"CreateTable"},"region":"us-west-2"}`, string(compactJSON([]byte(pretty))))
	assert.Equal(t, `{"a":1}`, string(compactJSON([]byte(`{"a":1}`))))
	assert.Equal(t, `"not json"`, string(compactJSON([]byte(`not json`))))
}

func TestConfigPath(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "/etc/enforcer/from-env.toml")

	assert.Equal(t, "local.toml", configPath("local.toml"))
	assert.Equal(t, "/etc/enforcer/from-env.toml", configPath(""))

	t.Setenv(config.EnvConfigFile, "")
	assert.Equal(t, "", configPath(""))
}

func TestBuildEnforcer_LogsExemptions(t *testing.T) {
	tests := []struct {
		name     string
		prefixes string
		want     string
	}{
		{"configured", "terraform-, infrastructure-", `"exempt_prefixes":["terraform-","infrastructure-"]`},
		{"none", "", "no exempt prefixes configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := log.Logger
			log.Logger = zerolog.New(&buf)
			t.Cleanup(func() { log.Logger = prev })

			h := newHarness(nil)
			cfg := testConfig(t, map[string]string{config.EnvExemptPrefixes: tt.prefixes})

			_, err := buildEnforcer(cfg, h.clients, false)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
