package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartPush upserts the delivery record for (notificationID, subscriptionID)
// as IN_PROGRESS. A new record starts at one attempt; an existing record takes
// attempt, or 1 when attempt is zero.
func (r *Repository) StartPush(
	ctx context.Context,
	notificationID, subscriptionID uuid.UUID,
	attempt int,
	expiresAt time.Time,
	userID *string,
) (*NotificationPush, error) {
	if attempt <= 0 {
		attempt = 1
	}

	query := `
		INSERT INTO notification_pushes (
			notification_id, subscription_id, processing_status,
			attempts, expires_at, user_id
		) VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (notification_id, subscription_id) DO UPDATE
		SET processing_status = EXCLUDED.processing_status,
			attempts = $6,
			updated_at = NOW()
		RETURNING processing_status, attempts, delivered_at, failed_at,
			expires_at, user_id, created_at, updated_at
	`

	p := NotificationPush{
		NotificationID: notificationID,
		SubscriptionID: subscriptionID,
	}
	err := r.db.Pool().QueryRow(ctx, query,
		notificationID,
		subscriptionID,
		ProcessingInProgress,
		expiresAt.UTC(),
		userID,
		attempt,
	).Scan(
		&p.ProcessingStatus,
		&p.Attempts,
		&p.DeliveredAt,
		&p.FailedAt,
		&p.ExpiresAt,
		&p.UserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert notification push",
			zap.Error(err),
			zap.String("notification_id", notificationID.String()),
			zap.String("subscription_id", subscriptionID.String()),
		)
		return nil, fmt.Errorf("upsert notification push: %w", err)
	}

	return &p, nil
}

// FinishPush records the outcome of a delivery attempt
func (r *Repository) FinishPush(
	ctx context.Context,
	notificationID, subscriptionID uuid.UUID,
	status string,
	deliveredAt, failedAt *time.Time,
) error {
	query := `
		UPDATE notification_pushes
		SET processing_status = $1, delivered_at = $2, failed_at = $3, updated_at = NOW()
		WHERE notification_id = $4 AND subscription_id = $5
	`

	result, err := r.db.Pool().Exec(ctx, query, status, deliveredAt, failedAt, notificationID, subscriptionID)
	if err != nil {
		return fmt.Errorf("update notification push: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification push %s/%s: %w", notificationID, subscriptionID, ErrNotFound)
	}

	return nil
}

// RetryQuery selects pushes due for another attempt
type RetryQuery struct {
	Now time.Time
	// Backoff is the wait after the n-th failed attempt at index n-1; the
	// last entry applies to every later attempt.
	Backoff []time.Duration
	// StaleBefore is the cutoff for IN_PROGRESS pushes treated as abandoned
	StaleBefore time.Time
	Limit       int
}

func (q RetryQuery) backoffSeconds() []float64 {
	if len(q.Backoff) == 0 {
		return []float64{0}
	}
	secs := make([]float64, len(q.Backoff))
	for i, d := range q.Backoff {
		secs[i] = d.Seconds()
	}
	return secs
}

// ListRetryablePushes returns PENDING pushes whose per-attempt backoff has
// elapsed and IN_PROGRESS pushes abandoned before StaleBefore, limited to
// pushes whose notification is still active.
func (r *Repository) ListRetryablePushes(ctx context.Context, q RetryQuery) ([]*NotificationPush, error) {
	query := `
		SELECT
			p.notification_id, p.subscription_id, p.processing_status, p.attempts,
			p.delivered_at, p.failed_at, p.expires_at, p.user_id,
			p.created_at, p.updated_at
		FROM notification_pushes p
		JOIN notifications n ON n.id = p.notification_id
		WHERE ((p.processing_status = 'PENDING'
				AND p.updated_at <= $1::timestamptz - make_interval(
					secs => ($2::float8[])[LEAST(GREATEST(p.attempts, 1), cardinality($2::float8[]))]
				))
			OR (p.processing_status = 'IN_PROGRESS' AND p.updated_at <= $3))
			AND n.canceled_at IS NULL
			AND n.expires_at > NOW()
		ORDER BY p.updated_at ASC
		LIMIT $4
	`

	rows, err := r.db.Pool().Query(ctx, query, q.Now.UTC(), q.backoffSeconds(), q.StaleBefore.UTC(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query retryable pushes: %w", err)
	}
	defer rows.Close()

	var pushes []*NotificationPush
	for rows.Next() {
		var p NotificationPush
		err := rows.Scan(
			&p.NotificationID,
			&p.SubscriptionID,
			&p.ProcessingStatus,
			&p.Attempts,
			&p.DeliveredAt,
			&p.FailedAt,
			&p.ExpiresAt,
			&p.UserID,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification push: %w", err)
		}
		pushes = append(pushes, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return pushes, nil
}

// CloseInactivePushes marks every unfinished push of a canceled or expired
// notification as DONE and failed. It returns the number of rows closed.
func (r *Repository) CloseInactivePushes(ctx context.Context, at time.Time) (int64, error) {
	query := `
		UPDATE notification_pushes p
		SET processing_status = 'DONE', failed_at = $1, updated_at = NOW()
		FROM notifications n
		WHERE n.id = p.notification_id
			AND p.processing_status <> 'DONE'
			AND (n.canceled_at IS NOT NULL OR n.expires_at <= $1)
	`

	result, err := r.db.Pool().Exec(ctx, query, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("close inactive pushes: %w", err)
	}

	if n := result.RowsAffected(); n > 0 {
		r.logger.Info("closed pushes of inactive notifications", zap.Int64("count", n))
	}

	return result.RowsAffected(), nil
}
