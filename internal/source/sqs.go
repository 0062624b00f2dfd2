package source

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	apperrors "github.com/stratalake/stratalake/internal/errors"
)

// SQSConfig holds configuration for the SQS source.
type SQSConfig struct {
	// QueueURL is the full queue URL; resolved from QueueName when empty.
	QueueURL string
	// QueueName is the queue name used to resolve the URL.
	QueueName string
	// Region is the AWS region.
	Region string
	// MaxMessages is the max batch size per receive (SQS caps this at 10).
	MaxMessages int
	// VisibilityTimeout is how long received messages stay hidden.
	VisibilityTimeout time.Duration
	// WaitTime is the long-poll wait per receive call (SQS caps this at 20s).
	WaitTime time.Duration
}

// SQSSource implements MessageSource against AWS SQS.
type SQSSource struct {
	client   *sqs.Client
	queueURL string
	config   SQSConfig
}

// NewSQSSource creates an SQS source, resolving the queue URL from the queue
// name when no URL is configured.
func NewSQSSource(ctx context.Context, cfg SQSConfig) (*SQSSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("source: failed to load AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg)

	queueURL := cfg.QueueURL
	if queueURL == "" {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(cfg.QueueName),
		})
		if err != nil {
			return nil, apperrors.NewSourceError(apperrors.CodeQueueNotFound,
				fmt.Sprintf("failed to resolve queue URL for %s", cfg.QueueName), err)
		}
		queueURL = aws.ToString(out.QueueUrl)
	}

	log.Printf("source: SQS consumer initialized for queue: %s", queueURL)

	return &SQSSource{
		client:   client,
		queueURL: queueURL,
		config:   cfg,
	}, nil
}

// NewSQSSourceWithClient creates an SQS source with a pre-configured client.
func NewSQSSourceWithClient(client *sqs.Client, queueURL string, cfg SQSConfig) *SQSSource {
	return &SQSSource{client: client, queueURL: queueURL, config: cfg}
}

// Receive performs one bounded long-poll against the queue.
func (s *SQSSource) Receive(ctx context.Context) ([]Message, error) {
	maxMessages := int32(s.config.MaxMessages)
	if maxMessages < 1 {
		maxMessages = 1
	}
	if maxMessages > 10 {
		maxMessages = 10
	}

	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(s.queueURL),
		MaxNumberOfMessages:   maxMessages,
		VisibilityTimeout:     int32(s.config.VisibilityTimeout / time.Second),
		WaitTimeSeconds:       int32(s.config.WaitTime / time.Second),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameAll,
		},
	})
	if err != nil {
		return nil, apperrors.NewSourceError(apperrors.CodeReceiveFailed,
			"failed to receive messages", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
		})
	}

	return messages, nil
}

// Delete acknowledges a single message.
func (s *SQSSource) Delete(ctx context.Context, receiptHandle string) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return apperrors.NewSourceError(apperrors.CodeDeleteFailed,
			"failed to delete message", err)
	}
	return nil
}

// DeleteBatch acknowledges up to 10 messages in a single request and returns
// the receipt handles that failed.
func (s *SQSSource) DeleteBatch(ctx context.Context, receiptHandles []string) ([]string, error) {
	if len(receiptHandles) == 0 {
		return nil, nil
	}
	if len(receiptHandles) > 10 {
		receiptHandles = receiptHandles[:10]
	}

	entries := make([]types.DeleteMessageBatchRequestEntry, len(receiptHandles))
	for i, handle := range receiptHandles {
		entries[i] = types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: aws.String(handle),
		}
	}

	out, err := s.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(s.queueURL),
		Entries:  entries,
	})
	if err != nil {
		return nil, apperrors.NewSourceError(apperrors.CodeDeleteFailed,
			"batch delete failed", err)
	}

	var failed []string
	for _, f := range out.Failed {
		idx, err := strconv.Atoi(aws.ToString(f.Id))
		if err == nil && idx < len(receiptHandles) {
			failed = append(failed, receiptHandles[idx])
		}
	}
	if len(failed) > 0 {
		log.Printf("source: failed to delete %d messages in batch", len(failed))
	}

	return failed, nil
}

// ApproximateCount returns the approximate number of visible messages.
func (s *SQSSource) ApproximateCount(ctx context.Context) (int, error) {
	out, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(s.queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	if err != nil {
		return 0, apperrors.NewSourceError(apperrors.CodeReceiveFailed,
			"failed to get queue attributes", err)
	}

	raw := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return count, nil
}
