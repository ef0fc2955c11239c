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

// CreateNotification inserts a new notification
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	query := `
		INSERT INTO notifications (
			id, message, title, tag, image_url, link_url, urgency, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		n.ID,
		n.Message,
		n.Title,
		n.Tag,
		n.ImageURL,
		n.LinkURL,
		n.Urgency,
		n.ExpiresAt.UTC(),
	).Scan(&n.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("notification_id", n.ID.String()),
		)
		return fmt.Errorf("insert notification: %w", err)
	}

	r.logger.Info("notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("urgency", n.Urgency),
		zap.Time("expires_at", n.ExpiresAt),
	)

	return nil
}

// GetNotification retrieves a notification by ID
func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	query := `
		SELECT
			id, message, title, tag, image_url, link_url, urgency,
			expires_at, canceled_at, created_at
		FROM notifications
		WHERE id = $1
	`

	var n Notification
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.Message,
		&n.Title,
		&n.Tag,
		&n.ImageURL,
		&n.LinkURL,
		&n.Urgency,
		&n.ExpiresAt,
		&n.CanceledAt,
		&n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get notification",
			zap.Error(err),
			zap.String("notification_id", id.String()),
		)
		return nil, fmt.Errorf("query notification: %w", err)
	}

	return &n, nil
}

// CancelNotification stamps canceled_at. Canceling twice keeps the first timestamp.
func (r *Repository) CancelNotification(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications
		SET canceled_at = COALESCE(canceled_at, $1)
		WHERE id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	r.logger.Info("notification canceled", zap.String("notification_id", id.String()))

	return nil
}
