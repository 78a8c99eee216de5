package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI is the part of *sqs.Client the broker calls
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSBroker implements Broker on Amazon SQS
type SQSBroker struct {
	client   sqsAPI
	queueURL string
}

// NewSQSBroker loads the default AWS credential chain for region and targets queueURL
func NewSQSBroker(ctx context.Context, region, queueURL string) (*SQSBroker, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SQSBroker{client: sqs.NewFromConfig(awsCfg), queueURL: queueURL}, nil
}

func (b *SQSBroker) Send(ctx context.Context, msg OutgoingMessage) error {
	_, err := b.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(b.queueURL),
		MessageBody:       aws.String(string(msg.Body)),
		MessageAttributes: toAttributeValues(msg.Attributes),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *SQSBroker) SendBatch(ctx context.Context, msgs []OutgoingMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > MaxBatchEntries {
		return fmt.Errorf("batch of %d exceeds %d entries", len(msgs), MaxBatchEntries)
	}
	entries := make([]types.SendMessageBatchRequestEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = types.SendMessageBatchRequestEntry{
			Id:                aws.String(m.ID),
			MessageBody:       aws.String(string(m.Body)),
			MessageAttributes: toAttributeValues(m.Attributes),
		}
	}
	out, err := b.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(b.queueURL),
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("failed to send message batch: %w", err)
	}
	if len(out.Failed) > 0 {
		failed := make([]string, len(out.Failed))
		for i, f := range out.Failed {
			failed[i] = aws.ToString(f.Id) + ": " + aws.ToString(f.Message)
		}
		return fmt.Errorf("%d of %d batch entries failed: %s", len(out.Failed), len(msgs), strings.Join(failed, "; "))
	}
	return nil
}

func (b *SQSBroker) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	out, err := b.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(b.queueURL),
		MaxNumberOfMessages:   int32(opts.MaxMessages),
		WaitTimeSeconds:       int32(opts.WaitTime.Seconds()),
		VisibilityTimeout:     int32(opts.VisibilityTimeout.Seconds()),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		attrs := make(map[string]string, len(m.MessageAttributes))
		for k, v := range m.MessageAttributes {
			attrs[k] = aws.ToString(v.StringValue)
		}
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
			Attributes:    attrs,
			ReceiveCount:  count,
		})
	}
	return msgs, nil
}

func (b *SQSBroker) Delete(ctx context.Context, receiptHandle string) error {
	_, err := b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(b.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func toAttributeValues(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}
