package schedule

import (
	"context"
	"time"

	"github.com/alveusgg/sanctuary/internal/calendar"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/discord"
)

const discordTimeLayout = "2006-01-02T15:04:05+00:00"

// DiscordAPI manages guild scheduled events
type DiscordAPI interface {
	ListEvents(ctx context.Context) ([]discord.Event, error)
	CreateEvent(ctx context.Context, ev discord.Event) (*discord.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// DiscordPlatform mirrors every timed event to the guild's scheduled events
type DiscordPlatform struct {
	api   DiscordAPI
	delay time.Duration
}

// NewDiscordPlatform builds the platform. Mutating calls are spaced by
// discord.RequestSpacing.
func NewDiscordPlatform(api DiscordAPI) *DiscordPlatform {
	return &DiscordPlatform{api: api, delay: discord.RequestSpacing}
}

func (p *DiscordPlatform) Name() string {
	return "discord"
}

func (p *DiscordPlatform) Include(*db.CalendarEvent) bool {
	return true
}

func (p *DiscordPlatform) Canonical(ev *db.CalendarEvent) Entry {
	e := Entry{
		Title:     calendar.FormattedTitle(ev.Title, ev.Link, "", discord.MaxNameLength),
		Location:  ev.Link,
		StartTime: ev.StartAt.UTC().Format(discordTimeLayout),
		Start:     ev.StartAt.UTC(),
	}
	if ev.Description != nil {
		e.Description = *ev.Description
	}
	return e
}

func (p *DiscordPlatform) List(ctx context.Context, _ time.Time) ([]Entry, error) {
	events, err := p.api.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, Entry{
			ID:          ev.ID,
			Title:       ev.Name,
			Description: ev.Description,
			Location:    ev.Location,
			StartTime:   ev.StartTime.UTC().Format(discordTimeLayout),
			Start:       ev.StartTime.UTC(),
		})
	}
	return entries, nil
}

func (p *DiscordPlatform) Create(ctx context.Context, e Entry) error {
	_, err := p.api.CreateEvent(ctx, discord.Event{
		Name:        e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartTime:   e.Start,
		EndTime:     e.Start.Add(calendar.EventDuration),
	})
	return err
}

func (p *DiscordPlatform) Delete(ctx context.Context, e Entry) error {
	return p.api.DeleteEvent(ctx, e.ID)
}

func (p *DiscordPlatform) Delay() time.Duration {
	return p.delay
}
