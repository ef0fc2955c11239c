// Package worker re-drives push deliveries that did not finish.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/metrics"
	"github.com/alveusgg/sanctuary/internal/push"
)

// StaleAfter is how long an IN_PROGRESS push may sit before it is treated
// as abandoned
const StaleAfter = 10 * time.Minute

type Repository interface {
	ListRetryablePushes(ctx context.Context, q db.RetryQuery) ([]*db.NotificationPush, error)
	CloseInactivePushes(ctx context.Context, at time.Time) (int64, error)
	GetNotification(ctx context.Context, id uuid.UUID) (*db.Notification, error)
}

// Worker polls for PENDING pushes whose backoff elapsed and delivers them
// again with the next attempt number
type Worker struct {
	repo      Repository
	deliverer push.Deliverer
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

func New(repo Repository, deliverer push.Deliverer, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 25
	}

	return &Worker{
		repo:      repo,
		deliverer: deliverer,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	now := w.now()

	if _, err := w.repo.CloseInactivePushes(ctx, now); err != nil {
		w.logger.Error("failed to close inactive pushes", zap.Error(err))
	}

	pushes, err := w.repo.ListRetryablePushes(ctx, db.RetryQuery{
		Now:         now,
		Backoff:     retryDelays,
		StaleBefore: now.Add(-StaleAfter),
		Limit:       w.config.BatchSize,
	})
	if err != nil {
		w.logger.Error("failed to list retryable pushes", zap.Error(err))
		return
	}

	notifications := make(map[uuid.UUID]*db.Notification)
	for _, p := range pushes {
		n, ok := notifications[p.NotificationID]
		if !ok {
			n, err = w.repo.GetNotification(ctx, p.NotificationID)
			if err != nil {
				w.logger.Error("failed to load notification",
					zap.Error(err),
					zap.String("notification_id", p.NotificationID.String()),
				)
				continue
			}
			notifications[p.NotificationID] = n
		}

		w.retry(ctx, p, n)
	}
}

func (w *Worker) retry(ctx context.Context, p *db.NotificationPush, n *db.Notification) {
	attempt := p.Attempts + 1
	metrics.RecordPushRetry()

	delivered, err := w.deliverer.Deliver(ctx, push.DeliveryRequest{
		NotificationID: p.NotificationID,
		SubscriptionID: p.SubscriptionID,
		ExpiresAt:      p.ExpiresAt.UnixMilli(),
		Attempt:        attempt,
		Title:          n.Title,
		Message:        n.Message,
		Tag:            n.Tag,
		ImageURL:       n.ImageURL,
		Urgency:        n.Urgency,
	})
	if err != nil {
		w.logger.Error("push retry failed",
			zap.Error(err),
			zap.String("notification_id", p.NotificationID.String()),
			zap.String("subscription_id", p.SubscriptionID.String()),
			zap.Int("attempt", attempt),
		)
		return
	}

	w.logger.Info("push retried",
		zap.String("notification_id", p.NotificationID.String()),
		zap.String("subscription_id", p.SubscriptionID.String()),
		zap.Int("attempt", attempt),
		zap.Bool("delivered", delivered),
	)
}

// retryDelays is the wait after each failed attempt; the last one repeats
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}
