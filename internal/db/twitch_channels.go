package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetTwitchChannel retrieves stored credentials for a Twitch username
func (r *Repository) GetTwitchChannel(ctx context.Context, username string) (*TwitchChannel, error) {
	query := `
		SELECT username, broadcaster_id, access_token, updated_at
		FROM twitch_channels
		WHERE lower(username) = lower($1)
	`

	var c TwitchChannel
	err := r.db.Pool().QueryRow(ctx, query, username).Scan(
		&c.Username,
		&c.BroadcasterID,
		&c.AccessToken,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("twitch channel %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query twitch channel: %w", err)
	}

	return &c, nil
}

// SaveTwitchChannel stores or replaces broadcaster credentials
func (r *Repository) SaveTwitchChannel(ctx context.Context, c *TwitchChannel) error {
	query := `
		INSERT INTO twitch_channels (username, broadcaster_id, access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET broadcaster_id = EXCLUDED.broadcaster_id,
			access_token = EXCLUDED.access_token,
			updated_at = NOW()
		RETURNING updated_at
	`

	if err := r.db.Pool().QueryRow(ctx, query, c.Username, c.BroadcasterID, c.AccessToken).Scan(&c.UpdatedAt); err != nil {
		return fmt.Errorf("save twitch channel: %w", err)
	}

	return nil
}
