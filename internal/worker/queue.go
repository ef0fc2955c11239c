package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/metrics"
	"github.com/alveusgg/sanctuary/internal/push"
	"github.com/alveusgg/sanctuary/internal/sqs"
)

// Queue is the consuming side of the delivery queue
type Queue interface {
	Receive(ctx context.Context, limit int32) ([]sqs.Received, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueWorker delivers pushes received from the queue. A message whose
// delivery hit a store error is left on the queue for redelivery.
type QueueWorker struct {
	queue     Queue
	deliverer push.Deliverer
	timeout   time.Duration
	logger    *zap.Logger
}

func NewQueueWorker(queue Queue, deliverer push.Deliverer, logger *zap.Logger) *QueueWorker {
	return &QueueWorker{
		queue:     queue,
		deliverer: deliverer,
		timeout:   push.DeliveryTimeout,
		logger:    logger,
	}
}

func (w *QueueWorker) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.logger.Info("queue worker stopping")
			return
		}

		messages, err := w.queue.Receive(ctx, 10)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to receive deliveries", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		metrics.SetSQSMessagesInFlight(len(messages))
		for _, m := range messages {
			w.handle(ctx, m)
		}
		metrics.SetSQSMessagesInFlight(0)
	}
}

func (w *QueueWorker) handle(ctx context.Context, m sqs.Received) {
	req := m.Message.Delivery

	deliverCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if _, err := w.deliverer.Deliver(deliverCtx, req); err != nil {
		w.logger.Error("queued delivery failed, leaving message for redelivery",
			zap.Error(err),
			zap.String("notification_id", req.NotificationID.String()),
			zap.String("subscription_id", req.SubscriptionID.String()),
		)
		return
	}

	if err := w.queue.Delete(ctx, m.ReceiptHandle); err != nil {
		w.logger.Warn("failed to delete delivered message", zap.Error(err))
	}
}
