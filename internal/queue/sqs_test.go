package queue

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func (m *mockSQS) SendMessageBatch(ctx context.Context, in *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*sqs.SendMessageBatchOutput), args.Error(1)
}

func (m *mockSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *mockSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func TestSQSBroker_ReceiveMapsAttributes(t *testing.T) {
	client := new(mockSQS)
	b := &SQSBroker{client: client, queueURL: "https://sqs.local/q"}

	client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return in.MaxNumberOfMessages == 10 && in.WaitTimeSeconds == 20 && in.VisibilityTimeout == 300
	})).Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId:     aws.String("m1"),
		ReceiptHandle: aws.String("rh1"),
		Body:          aws.String(`{"type":"FOLLOW"}`),
		Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
		MessageAttributes: map[string]types.MessageAttributeValue{
			AttrMessageType: {DataType: aws.String("String"), StringValue: aws.String("FOLLOW")},
		},
	}}}, nil)

	msgs, err := b.Receive(context.Background(), ReceiveOptions{
		MaxMessages:       10,
		WaitTime:          20 * time.Second,
		VisibilityTimeout: 300 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "rh1", msgs[0].ReceiptHandle)
	assert.Equal(t, 3, msgs[0].ReceiveCount)
	assert.Equal(t, "FOLLOW", msgs[0].Attributes[AttrMessageType])
	client.AssertExpectations(t)
}

func TestSQSBroker_SendBatchReportsFailedEntries(t *testing.T) {
	client := new(mockSQS)
	b := &SQSBroker{client: client, queueURL: "https://sqs.local/q"}

	client.On("SendMessageBatch", mock.Anything, mock.Anything).Return(&sqs.SendMessageBatchOutput{
		Failed: []types.BatchResultErrorEntry{{Id: aws.String("e2"), Message: aws.String("throttled")}},
	}, nil)

	err := b.SendBatch(context.Background(), []OutgoingMessage{
		{ID: "e1", Body: []byte("{}")},
		{ID: "e2", Body: []byte("{}")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "e2: throttled")
}

func TestSQSBroker_SendBatchRejectsOversizedBatch(t *testing.T) {
	b := &SQSBroker{client: new(mockSQS), queueURL: "q"}
	err := b.SendBatch(context.Background(), make([]OutgoingMessage, 11))
	assert.Error(t, err)
}
