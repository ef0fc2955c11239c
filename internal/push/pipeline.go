// Package push delivers notifications to browser push subscriptions.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/metrics"
)

// DeliveryRequest asks for one notification to be pushed to one subscription.
// ExpiresAt is in Unix milliseconds. Attempt is zero on the first call.
type DeliveryRequest struct {
	NotificationID uuid.UUID `json:"notificationId" validate:"required"`
	SubscriptionID uuid.UUID `json:"subscriptionId" validate:"required"`
	ExpiresAt      int64     `json:"expiresAt" validate:"required"`
	Attempt        int       `json:"attempt,omitempty" validate:"gte=0"`
	Title          *string   `json:"title,omitempty"`
	Message        string    `json:"message" validate:"required"`
	Tag            *string   `json:"tag,omitempty"`
	ImageURL       *string   `json:"imageUrl,omitempty"`
	Urgency        string    `json:"urgency" validate:"required,oneof=VERY_LOW LOW NORMAL HIGH"`
}

// Expiry is ExpiresAt as a time
func (r DeliveryRequest) Expiry() time.Time {
	return time.UnixMilli(r.ExpiresAt).UTC()
}

// Store is the persistence the pipeline needs
type Store interface {
	GetSubscription(ctx context.Context, id uuid.UUID) (*db.PushSubscription, error)
	SoftDeleteSubscription(ctx context.Context, id uuid.UUID, at time.Time) error
	StartPush(ctx context.Context, notificationID, subscriptionID uuid.UUID, attempt int, expiresAt time.Time, userID *string) (*db.NotificationPush, error)
	FinishPush(ctx context.Context, notificationID, subscriptionID uuid.UUID, status string, deliveredAt, failedAt *time.Time) error
}

// Pipeline runs single delivery attempts
type Pipeline struct {
	store        Store
	transport    Transport
	maxAttempts  int
	presentation Presentation
	logger       *zap.Logger
	now          func() time.Time
	buildPayload func(DeliveryRequest, Presentation) ([]byte, error)
}

// NewPipeline creates a pipeline. maxAttempts bounds how often a failing
// push is left PENDING for another try.
func NewPipeline(store Store, transport Transport, maxAttempts int, presentation Presentation, logger *zap.Logger) *Pipeline {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Pipeline{
		store:        store,
		transport:    transport,
		maxAttempts:  maxAttempts,
		presentation: presentation,
		logger:       logger,
		now:          time.Now,
		buildPayload: BuildPayload,
	}
}

// Deliver makes one delivery attempt and records its outcome. It returns
// true when the push reached the endpoint, or when there is no live
// subscription to deliver to. Transport failures are recorded, not returned;
// store failures are returned.
func (p *Pipeline) Deliver(ctx context.Context, req DeliveryRequest) (bool, error) {
	logger := p.logger.With(
		zap.String("notification_id", req.NotificationID.String()),
		zap.String("subscription_id", req.SubscriptionID.String()),
		zap.Int("attempt", req.Attempt),
	)

	sub, err := p.store.GetSubscription(ctx, req.SubscriptionID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return false, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil || sub.DeletedAt != nil {
		metrics.RecordPushDelivery("no_subscription")
		return true, nil
	}

	push, err := p.store.StartPush(ctx, req.NotificationID, req.SubscriptionID, req.Attempt, req.Expiry(), sub.UserID)
	if err != nil {
		return false, err
	}

	now := p.now()

	if req.Expiry().Before(now) || isEmpty(sub.P256dh) || isEmpty(sub.Auth) {
		if err := p.store.FinishPush(ctx, req.NotificationID, req.SubscriptionID, db.ProcessingDone, nil, &now); err != nil {
			return false, err
		}
		metrics.RecordPushDelivery("undeliverable")
		logger.Info("push not sent, expired or missing keys")
		return false, nil
	}

	payload, err := p.buildPayload(req, p.presentation)
	if err != nil {
		status := ProcessingStatusFor(false, false, req.Attempt, p.maxAttempts)
		if ferr := p.store.FinishPush(ctx, req.NotificationID, req.SubscriptionID, status, nil, &now); ferr != nil {
			logger.Error("failed to record payload failure", zap.Error(ferr))
		}
		return false, fmt.Errorf("build payload: %w", err)
	}

	var delivered, gone bool

	status, err := p.transport.Send(ctx, Message{
		Endpoint: sub.Endpoint,
		P256dh:   *sub.P256dh,
		Auth:     *sub.Auth,
		Payload:  payload,
		TTL:      TTLSeconds(now, push.ExpiresAt),
		Urgency:  WebPushUrgency(req.Urgency),
	})
	switch {
	case err != nil:
		logger.Warn("failed to send push notification", zap.Error(err))
	case status >= 200 && status < 300:
		delivered = true
	case status == http.StatusGone:
		gone = true
		if err := p.store.SoftDeleteSubscription(ctx, req.SubscriptionID, now); err != nil {
			logger.Error("failed to remove gone subscription", zap.Error(err))
		}
	default:
		logger.Warn("push service returned unexpected status", zap.Int("status", status))
	}

	final := ProcessingStatusFor(delivered, gone, req.Attempt, p.maxAttempts)

	var deliveredAt, failedAt *time.Time
	if delivered {
		deliveredAt = &now
	} else {
		failedAt = &now
	}

	if err := p.store.FinishPush(ctx, req.NotificationID, req.SubscriptionID, final, deliveredAt, failedAt); err != nil {
		return delivered, err
	}

	metrics.RecordPushDelivery(outcome(delivered, gone, final))
	logger.Debug("push attempt finished",
		zap.Bool("delivered", delivered),
		zap.String("status", final),
	)

	return delivered, nil
}

func outcome(delivered, gone bool, status string) string {
	switch {
	case delivered:
		return "delivered"
	case gone:
		return "gone"
	case status == db.ProcessingDone:
		return "exhausted"
	default:
		return "retry"
	}
}

func isEmpty(s *string) bool {
	return s == nil || *s == ""
}
