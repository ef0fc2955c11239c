package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/metrics"
)

// DeliveryTimeout bounds a single in-process delivery
const DeliveryTimeout = 60 * time.Second

// Deliverer runs one delivery attempt
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) (bool, error)
}

// Dispatcher starts deliveries without waiting for them to finish
type Dispatcher interface {
	Dispatch(ctx context.Context, reqs []DeliveryRequest) error
}

// NotificationStore loads notifications
type NotificationStore interface {
	GetNotification(ctx context.Context, id uuid.UUID) (*db.Notification, error)
}

// Batcher fans a notification out to many subscriptions
type Batcher struct {
	notifications NotificationStore
	dispatcher    Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

func NewBatcher(notifications NotificationStore, dispatcher Dispatcher, logger *zap.Logger) *Batcher {
	return &Batcher{
		notifications: notifications,
		dispatcher:    dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// BatchDeliver dispatches one delivery per subscription and returns without
// waiting for them. A missing, canceled or expired notification aborts the
// whole batch and returns false.
func (b *Batcher) BatchDeliver(ctx context.Context, notificationID uuid.UUID, expiresAt int64, subscriptionIDs []uuid.UUID) (bool, error) {
	n, err := b.notifications.GetNotification(ctx, notificationID)
	if errors.Is(err, db.ErrNotFound) {
		metrics.RecordPushBatch("aborted")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load notification: %w", err)
	}

	if !n.Active(b.now()) {
		metrics.RecordPushBatch("aborted")
		b.logger.Info("notification inactive, batch skipped",
			zap.String("notification_id", notificationID.String()),
		)
		return false, nil
	}

	reqs := make([]DeliveryRequest, 0, len(subscriptionIDs))
	for _, id := range subscriptionIDs {
		reqs = append(reqs, DeliveryRequest{
			NotificationID: n.ID,
			SubscriptionID: id,
			ExpiresAt:      expiresAt,
			Title:          n.Title,
			Message:        n.Message,
			Tag:            n.Tag,
			ImageURL:       n.ImageURL,
			Urgency:        n.Urgency,
		})
	}

	if err := b.dispatcher.Dispatch(ctx, reqs); err != nil {
		metrics.RecordPushBatch("failed")
		return false, fmt.Errorf("dispatch deliveries: %w", err)
	}

	metrics.RecordPushBatch("dispatched")
	b.logger.Info("push batch dispatched",
		zap.String("notification_id", notificationID.String()),
		zap.Int("subscriptions", len(reqs)),
	)

	return true, nil
}

// InProcessDispatcher runs every delivery in its own goroutine. Deliveries
// outlive the dispatching request; Wait blocks until they have all settled.
type InProcessDispatcher struct {
	deliverer Deliverer
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewInProcessDispatcher(deliverer Deliverer, timeout time.Duration, logger *zap.Logger) *InProcessDispatcher {
	if timeout <= 0 {
		timeout = DeliveryTimeout
	}
	return &InProcessDispatcher{deliverer: deliverer, timeout: timeout, logger: logger}
}

func (d *InProcessDispatcher) Dispatch(ctx context.Context, reqs []DeliveryRequest) error {
	base := context.WithoutCancel(ctx)

	for _, req := range reqs {
		d.wg.Add(1)
		metrics.AddPushInFlight(1)

		go func() {
			defer d.wg.Done()
			defer metrics.AddPushInFlight(-1)

			ctx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			if _, err := d.deliverer.Deliver(ctx, req); err != nil {
				d.logger.Error("push delivery failed",
					zap.Error(err),
					zap.String("notification_id", req.NotificationID.String()),
					zap.String("subscription_id", req.SubscriptionID.String()),
				)
			}
		}()
	}

	return nil
}

// Wait blocks until every dispatched delivery settled or ctx is done
func (d *InProcessDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
