package db

import (
	"go.uber.org/zap"
)

// Repository handles database operations for calendar events, notifications,
// push subscriptions, delivery status and platform credentials
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}
