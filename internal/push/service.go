package push

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/db"
)

// NotificationInput describes a notification to create and send
type NotificationInput struct {
	Message   string    `json:"message" validate:"required,max=1000"`
	Title     *string   `json:"title,omitempty" validate:"omitempty,max=200"`
	Tag       *string   `json:"tag,omitempty" validate:"omitempty,max=100"`
	ImageURL  *string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	LinkURL   *string   `json:"linkUrl,omitempty" validate:"omitempty,url"`
	Urgency   string    `json:"urgency" validate:"required,oneof=VERY_LOW LOW NORMAL HIGH"`
	ExpiresAt time.Time `json:"expiresAt" validate:"required"`
}

// SubscriptionInput is a browser PushSubscription as sent by the site
type SubscriptionInput struct {
	Endpoint string  `json:"endpoint" validate:"required,url"`
	P256dh   string  `json:"p256dh" validate:"required"`
	Auth     string  `json:"auth" validate:"required"`
	UserID   *string `json:"userId,omitempty"`
}

// ServiceStore is the persistence behind Service
type ServiceStore interface {
	NotificationStore
	CreateNotification(ctx context.Context, n *db.Notification) error
	CancelNotification(ctx context.Context, id uuid.UUID, at time.Time) error
	ListActiveSubscriptionIDs(ctx context.Context) ([]uuid.UUID, error)
	UpsertSubscription(ctx context.Context, s *db.PushSubscription) error
	SoftDeleteSubscriptionByEndpoint(ctx context.Context, endpoint string, at time.Time) error
}

// Service manages notifications and subscriptions around the delivery pipeline
type Service struct {
	store   ServiceStore
	batcher *Batcher
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store ServiceStore, batcher *Batcher, logger *zap.Logger) *Service {
	return &Service{store: store, batcher: batcher, logger: logger, now: time.Now}
}

// CreateAndSend stores a notification and fans it out to every active
// subscription. It reports whether the batch was dispatched.
func (s *Service) CreateAndSend(ctx context.Context, in NotificationInput) (*db.Notification, bool, error) {
	n := &db.Notification{
		Message:   in.Message,
		Title:     in.Title,
		Tag:       in.Tag,
		ImageURL:  in.ImageURL,
		LinkURL:   in.LinkURL,
		Urgency:   in.Urgency,
		ExpiresAt: in.ExpiresAt,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, false, err
	}

	ids, err := s.store.ListActiveSubscriptionIDs(ctx)
	if err != nil {
		return n, false, fmt.Errorf("list subscriptions: %w", err)
	}

	sent, err := s.batcher.BatchDeliver(ctx, n.ID, n.ExpiresAt.UnixMilli(), ids)
	if err != nil {
		return n, false, err
	}

	return n, sent, nil
}

// Cancel stops pending deliveries of a notification
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.store.CancelNotification(ctx, id, s.now())
}

// Subscribe registers a browser subscription, restoring it if it was removed
func (s *Service) Subscribe(ctx context.Context, in SubscriptionInput) (*db.PushSubscription, error) {
	sub := &db.PushSubscription{
		Endpoint: in.Endpoint,
		P256dh:   &in.P256dh,
		Auth:     &in.Auth,
		UserID:   in.UserID,
	}
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe soft-deletes the subscription registered for endpoint
func (s *Service) Unsubscribe(ctx context.Context, endpoint string) error {
	return s.store.SoftDeleteSubscriptionByEndpoint(ctx, endpoint, s.now())
}
