package calendar

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/metrics"
)

var birthDateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// EventCreator persists a single calendar event
type EventCreator interface {
	CreateCalendarEvent(ctx context.Context, ev *db.CalendarEvent) error
}

// Generator creates the recurring calendar events of a month
type Generator struct {
	store        EventCreator
	ambassadors  []data.Ambassador
	shortBaseURL string
	loc          *time.Location
	logger       *zap.Logger
}

// NewGenerator creates a generator. Events are laid out in loc.
func NewGenerator(store EventCreator, ambassadors []data.Ambassador, shortBaseURL string, loc *time.Location, logger *zap.Logger) *Generator {
	return &Generator{
		store:        store,
		ambassadors:  ambassadors,
		shortBaseURL: strings.TrimRight(shortBaseURL, "/"),
		loc:          loc,
		logger:       logger,
	}
}

// GenerateMonth creates the events of the month following reference
func (g *Generator) GenerateMonth(ctx context.Context, reference time.Time) error {
	events, err := g.MonthEvents(reference)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := g.store.CreateCalendarEvent(ctx, ev); err != nil {
			return fmt.Errorf("create %q on %s: %w", ev.Title, ev.StartAt.Format(time.DateOnly), err)
		}
	}

	metrics.RecordEventsGenerated(len(events))

	g.logger.Info("generated regular calendar events",
		zap.String("month", TargetMonth(reference, g.loc).Format("2006-01")),
		zap.Int("count", len(events)),
	)

	return nil
}

// MonthEvents builds, without persisting, the events GenerateMonth would create
func (g *Generator) MonthEvents(reference time.Time) ([]*db.CalendarEvent, error) {
	first := TargetMonth(reference, g.loc)
	last := time.Date(first.Year(), first.Month()+1, 0, 12, 0, 0, 0, g.loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		return nil, fmt.Errorf("build day recurrence: %w", err)
	}

	birthdays := g.birthdaysByDay()

	var events []*db.CalendarEvent
	for _, d := range rule.All() {
		d = d.In(g.loc)
		day := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, g.loc)

		templates := EventsForWeekday(day.Weekday())
		for _, a := range birthdays[day.Format("01-02")] {
			templates = append(templates, RegularEvent{
				Title:       a.Name + "'s Birthday",
				Description: "Wish " + a.Name + " a happy birthday!",
				Category:    CategorySpecialStream,
				Link:        g.shortBaseURL + "/" + CamelToKebab(a.Key),
			})
		}

		for _, tpl := range templates {
			start := day
			if tpl.HasTime {
				start = time.Date(day.Year(), day.Month(), day.Day(), tpl.Hour, tpl.Minute, 0, 0, g.loc)
			}
			description := tpl.Description
			events = append(events, &db.CalendarEvent{
				Title:       tpl.Title,
				Category:    tpl.Category,
				Description: &description,
				Link:        tpl.Link,
				StartAt:     start.UTC(),
				HasTime:     tpl.HasTime,
			})
		}
	}

	return events, nil
}

// birthdaysByDay indexes active ambassadors with an exact birth date by MM-DD
func (g *Generator) birthdaysByDay() map[string][]data.Ambassador {
	out := make(map[string][]data.Ambassador)
	for _, a := range g.ambassadors {
		if !a.Active() {
			continue
		}
		m := birthDateRe.FindStringSubmatch(a.Birth)
		if m == nil {
			continue
		}
		key := m[2] + "-" + m[3]
		out[key] = append(out[key], a)
	}
	return out
}

// TargetMonth is noon on the first day of the month after reference, in loc
func TargetMonth(reference time.Time, loc *time.Location) time.Time {
	t := reference.In(loc)
	return time.Date(t.Year(), t.Month()+1, 1, 12, 0, 0, 0, loc)
}
