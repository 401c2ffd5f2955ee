package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/yairfalse/billing-enforcer/internal/enforcer"
)

// maxSubjectLen is the SNS limit on email subjects.
const maxSubjectLen = 100

// Notifier publishes operator notifications to an SNS topic.
type Notifier struct {
	client   SNSAPI
	topicARN string
}

// NewNotifier creates a Notifier for the topic.
func NewNotifier(client SNSAPI, topicARN string) *Notifier {
	return &Notifier{client: client, topicARN: topicARN}
}

// Notify publishes the notification with string message attributes.
func (n *Notifier) Notify(ctx context.Context, msg enforcer.Notification) error {
	attrs := make(map[string]snstypes.MessageAttributeValue, len(msg.Attributes))
	for k, v := range msg.Attributes {
		attrs[k] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topicARN),
		Subject:           aws.String(truncateSubject(msg.Subject)),
		Message:           aws.String(msg.Message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", n.topicARN, err)
	}
	return nil
}

func truncateSubject(s string) string {
	if len(s) <= maxSubjectLen {
		return s
	}
	return s[:maxSubjectLen]
}
