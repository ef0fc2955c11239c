// Package schedule mirrors the site calendar onto external platform schedules.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/db"
)

// Entry is the platform canonical form of a scheduled event. Two entries
// describe the same event when every field but ID and Start is equal.
type Entry struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartTime   string
	Start       time.Time
}

func (e Entry) matches(o Entry) bool {
	return e.Title == o.Title &&
		e.Description == o.Description &&
		e.Location == o.Location &&
		e.StartTime == o.StartTime
}

// Platform is a remote schedule the calendar is mirrored to
type Platform interface {
	Name() string
	// Include reports whether a local event belongs on this platform
	Include(ev *db.CalendarEvent) bool
	Canonical(ev *db.CalendarEvent) Entry
	// List returns the remote entries starting at or after from
	List(ctx context.Context, from time.Time) ([]Entry, error)
	Create(ctx context.Context, e Entry) error
	Delete(ctx context.Context, e Entry) error
	// Delay is the pause after each create or delete call
	Delay() time.Duration
}

// EventSource finds local calendar events
type EventSource interface {
	FindCalendarEvents(ctx context.Context, f db.CalendarEventFilter) ([]*db.CalendarEvent, error)
}

// Result summarizes one reconciliation run
type Result struct {
	Matched int
	Created int
	Deleted int
	Failed  int
}

// Reconciler converges remote schedules to the local calendar
type Reconciler struct {
	events EventSource
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconciler creates a reconciler reading local events from events
func NewReconciler(events EventSource, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		events: events,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Reconcile makes the platform's schedule match the local timed events from
// now onward. Unmatched remote entries are deleted before missing entries are
// created. Individual create and delete failures are logged and counted; the
// run continues.
func (r *Reconciler) Reconcile(ctx context.Context, p Platform) (Result, error) {
	var res Result

	from := r.now().UTC()
	hasTime := true

	local, err := r.events.FindCalendarEvents(ctx, db.CalendarEventFilter{
		Start:     from,
		OpenEnded: true,
		HasTime:   &hasTime,
	})
	if err != nil {
		return res, fmt.Errorf("load calendar events: %w", err)
	}

	remote, err := p.List(ctx, from)
	if err != nil {
		return res, fmt.Errorf("list %s schedule: %w", p.Name(), err)
	}

	var create []Entry
	for _, ev := range local {
		if !p.Include(ev) {
			continue
		}

		want := p.Canonical(ev)
		idx := -1
		for i, e := range remote {
			if e.matches(want) {
				idx = i
				break
			}
		}

		if idx >= 0 {
			remote = append(remote[:idx], remote[idx+1:]...)
			res.Matched++
			continue
		}

		create = append(create, want)
	}

	logger := r.logger.With(zap.String("platform", p.Name()))

	for _, e := range remote {
		logger.Info("removing schedule entry",
			zap.String("id", e.ID),
			zap.String("title", e.Title),
			zap.String("start", e.StartTime),
		)
		if err := p.Delete(ctx, e); err != nil {
			logger.Error("failed to remove schedule entry", zap.Error(err), zap.String("id", e.ID))
			res.Failed++
		} else {
			res.Deleted++
		}

		if err := r.pause(ctx, p); err != nil {
			return res, err
		}
	}

	for _, e := range create {
		logger.Info("creating schedule entry",
			zap.String("title", e.Title),
			zap.String("start", e.StartTime),
		)
		if err := p.Create(ctx, e); err != nil {
			logger.Error("failed to create schedule entry", zap.Error(err), zap.String("title", e.Title))
			res.Failed++
		} else {
			res.Created++
		}

		if err := r.pause(ctx, p); err != nil {
			return res, err
		}
	}

	return res, nil
}

func (r *Reconciler) pause(ctx context.Context, p Platform) error {
	if d := p.Delay(); d > 0 {
		return r.sleep(ctx, d)
	}
	return ctx.Err()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
