// Package sqs carries push deliveries over an SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/push"
)

// maxBatchEntries is the SendMessageBatch entry limit
const maxBatchEntries = 10

// Config holds SQS configuration.
type Config struct {
	Region   string
	QueueURL string
}

// Message is the body of a queued delivery
type Message struct {
	Delivery   push.DeliveryRequest `json:"delivery"`
	EnqueuedAt int64                `json:"enqueued_at"`
}

// API is the subset of the SQS client used here
type API interface {
	SendMessageBatch(ctx context.Context, in *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// NewClient loads the default AWS configuration for region
func NewClient(ctx context.Context, region string) (*sqs.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// Producer enqueues deliveries. It implements push.Dispatcher.
type Producer struct {
	client   API
	queueURL string
	logger   *zap.Logger
	now      func() time.Time
}

func NewProducer(client API, queueURL string, logger *zap.Logger) *Producer {
	logger.Info("sqs producer initialized", zap.String("queue_url", queueURL))

	return &Producer{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch enqueues reqs in batches. Entries the queue rejects are logged and
// dropped; a failed batch call is returned as an error.
func (p *Producer) Dispatch(ctx context.Context, reqs []push.DeliveryRequest) error {
	for start := 0; start < len(reqs); start += maxBatchEntries {
		end := min(start+maxBatchEntries, len(reqs))

		entries := make([]types.SendMessageBatchRequestEntry, 0, end-start)
		for i, req := range reqs[start:end] {
			body, err := json.Marshal(Message{Delivery: req, EnqueuedAt: p.now().UnixNano()})
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          aws.String(strconv.Itoa(i)),
				MessageBody: aws.String(string(body)),
			})
		}

		out, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  entries,
		})
		if err != nil {
			p.logger.Error("failed to send batch to sqs", zap.Error(err), zap.Int("entries", len(entries)))
			return fmt.Errorf("sqs send batch failed: %w", err)
		}

		for _, f := range out.Failed {
			p.logger.Warn("sqs rejected delivery",
				zap.String("entry", aws.ToString(f.Id)),
				zap.String("code", aws.ToString(f.Code)),
				zap.String("message", aws.ToString(f.Message)),
			)
		}
	}

	return nil
}

// Received is a dequeued delivery and the handle needed to acknowledge it
type Received struct {
	Message       Message
	ReceiptHandle string
}

// Consumer reads deliveries from SQS.
type Consumer struct {
	client   API
	queueURL string
	logger   *zap.Logger
}

func NewConsumer(client API, queueURL string, logger *zap.Logger) *Consumer {
	logger.Info("sqs consumer initialized", zap.String("queue_url", queueURL))

	return &Consumer{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Receive long-polls for up to limit messages. Malformed bodies are deleted
// and skipped.
func (c *Consumer) Receive(ctx context.Context, limit int32) ([]Received, error) {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: limit,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   90,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive failed: %w", err)
	}

	received := make([]Received, 0, len(result.Messages))
	for _, m := range result.Messages {
		var msg Message
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &msg); err != nil {
			c.logger.Error("dropping malformed message", zap.Error(err), zap.String("message_id", aws.ToString(m.MessageId)))
			if err := c.Delete(ctx, aws.ToString(m.ReceiptHandle)); err != nil {
				c.logger.Warn("failed to delete malformed message", zap.Error(err))
			}
			continue
		}
		received = append(received, Received{Message: msg, ReceiptHandle: aws.ToString(m.ReceiptHandle)})
	}

	return received, nil
}

// Delete acknowledges a processed message
func (c *Consumer) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}
	return nil
}

// ChangeVisibility makes a message visible again after seconds
func (c *Consumer) ChangeVisibility(ctx context.Context, receiptHandle string, seconds int32) error {
	_, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: seconds,
	})
	if err != nil {
		return fmt.Errorf("sqs change visibility failed: %w", err)
	}
	return nil
}
