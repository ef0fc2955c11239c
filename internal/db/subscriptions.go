package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// GetSubscription retrieves a push subscription by ID, including soft-deleted ones
func (r *Repository) GetSubscription(ctx context.Context, id uuid.UUID) (*PushSubscription, error) {
	query := `
		SELECT id, endpoint, p256dh, auth, user_id, deleted_at, created_at
		FROM push_subscriptions
		WHERE id = $1
	`

	var s PushSubscription
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Endpoint,
		&s.P256dh,
		&s.Auth,
		&s.UserID,
		&s.DeletedAt,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}

	return &s, nil
}

// UpsertSubscription registers an endpoint. Re-registering a soft-deleted
// endpoint restores it with the new keys.
func (r *Repository) UpsertSubscription(ctx context.Context, s *PushSubscription) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	query := `
		INSERT INTO push_subscriptions (id, endpoint, p256dh, auth, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (endpoint) DO UPDATE
		SET p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			user_id = COALESCE(EXCLUDED.user_id, push_subscriptions.user_id),
			deleted_at = NULL
		RETURNING id, user_id, deleted_at, created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		s.ID,
		s.Endpoint,
		s.P256dh,
		s.Auth,
		s.UserID,
	).Scan(&s.ID, &s.UserID, &s.DeletedAt, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	r.logger.Info("push subscription registered", zap.String("subscription_id", s.ID.String()))

	return nil
}

// SoftDeleteSubscription marks a subscription as gone
func (r *Repository) SoftDeleteSubscription(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE push_subscriptions
		SET deleted_at = COALESCE(deleted_at, $1)
		WHERE id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}

	r.logger.Info("push subscription deleted", zap.String("subscription_id", id.String()))

	return nil
}

// SoftDeleteSubscriptionByEndpoint marks the subscription registered for endpoint as gone
func (r *Repository) SoftDeleteSubscriptionByEndpoint(ctx context.Context, endpoint string, at time.Time) error {
	query := `
		UPDATE push_subscriptions
		SET deleted_at = COALESCE(deleted_at, $1)
		WHERE endpoint = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, at.UTC(), endpoint)
	if err != nil {
		return fmt.Errorf("soft delete subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("subscription endpoint: %w", ErrNotFound)
	}

	return nil
}

// ListActiveSubscriptionIDs returns the IDs of every subscription not soft-deleted
func (r *Repository) ListActiveSubscriptionIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id FROM push_subscriptions
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect subscription ids: %w", err)
	}

	return ids, nil
}
