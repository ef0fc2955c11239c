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

const calendarEventColumns = `
	id, title, category, description, link, start_at, has_time,
	created_at, updated_at
`

// CreateCalendarEvent inserts a calendar event. StartAt is stored in UTC.
func (r *Repository) CreateCalendarEvent(ctx context.Context, ev *CalendarEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.StartAt = ev.StartAt.UTC()

	query := `
		INSERT INTO calendar_events (
			id, title, category, description, link, start_at, has_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		ev.ID,
		ev.Title,
		ev.Category,
		ev.Description,
		ev.Link,
		ev.StartAt,
		ev.HasTime,
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create calendar event",
			zap.Error(err),
			zap.String("title", ev.Title),
		)
		return fmt.Errorf("insert calendar event: %w", err)
	}

	r.logger.Debug("calendar event created",
		zap.String("event_id", ev.ID.String()),
		zap.String("title", ev.Title),
		zap.Time("start_at", ev.StartAt),
	)

	return nil
}

// UpdateCalendarEvent overwrites the editable fields of an existing event
func (r *Repository) UpdateCalendarEvent(ctx context.Context, ev *CalendarEvent) error {
	ev.StartAt = ev.StartAt.UTC()

	query := `
		UPDATE calendar_events
		SET title = $1, category = $2, description = $3, link = $4,
			start_at = $5, has_time = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		ev.Title,
		ev.Category,
		ev.Description,
		ev.Link,
		ev.StartAt,
		ev.HasTime,
		ev.ID,
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("calendar event %s: %w", ev.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}

	return nil
}

// GetCalendarEvent retrieves a calendar event by ID
func (r *Repository) GetCalendarEvent(ctx context.Context, id uuid.UUID) (*CalendarEvent, error) {
	query := `SELECT ` + calendarEventColumns + ` FROM calendar_events WHERE id = $1`

	var ev CalendarEvent
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&ev.ID,
		&ev.Title,
		&ev.Category,
		&ev.Description,
		&ev.Link,
		&ev.StartAt,
		&ev.HasTime,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("calendar event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}

	return &ev, nil
}

// FindCalendarEvents lists events in the filter window ordered by start time
func (r *Repository) FindCalendarEvents(ctx context.Context, f CalendarEventFilter) ([]*CalendarEvent, error) {
	var end *time.Time
	if !f.OpenEnded {
		e := f.End
		if e.IsZero() {
			e = f.Start.AddDate(0, 1, 0)
		}
		e = e.UTC()
		end = &e
	}

	query := `
		SELECT ` + calendarEventColumns + `
		FROM calendar_events
		WHERE start_at >= $1
			AND ($2::timestamptz IS NULL OR start_at < $2)
			AND ($3::boolean IS NULL OR has_time = $3)
		ORDER BY start_at ASC, title ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, f.Start.UTC(), end, f.HasTime)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []*CalendarEvent
	for rows.Next() {
		var ev CalendarEvent
		err := rows.Scan(
			&ev.ID,
			&ev.Title,
			&ev.Category,
			&ev.Description,
			&ev.Link,
			&ev.StartAt,
			&ev.HasTime,
			&ev.CreatedAt,
			&ev.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}
