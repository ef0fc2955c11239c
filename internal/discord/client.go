// Package discord manages guild scheduled events through discordgo.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	// MaxNameLength is the longest scheduled event name Discord accepts
	MaxNameLength = 100

	// RequestSpacing keeps mutating calls under 5 requests per minute
	RequestSpacing = time.Minute / 5
)

// Event is a guild scheduled event hosted at an external location
type Event struct {
	ID          string
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
}

// API is the subset of the discordgo session the client uses
type API interface {
	GuildScheduledEvents(guildID string, userCount bool, options ...discordgo.RequestOption) ([]*discordgo.GuildScheduledEvent, error)
	GuildScheduledEventCreate(guildID string, event *discordgo.GuildScheduledEventParams, options ...discordgo.RequestOption) (*discordgo.GuildScheduledEvent, error)
	GuildScheduledEventDelete(guildID, eventID string, options ...discordgo.RequestOption) error
}

// Client manages the scheduled events of one guild
type Client struct {
	api     API
	guildID string
	logger  *zap.Logger
}

// NewClient creates a bot-authenticated client for guildID
func NewClient(botToken, guildID string, logger *zap.Logger) (*Client, error) {
	if botToken == "" || guildID == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN and DISCORD_GUILD_ID are required for Discord event sync")
	}

	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.UserAgent = "Sanctuary (https://www.alveussanctuary.org, 1.0)"

	return NewClientWithAPI(session, guildID, logger), nil
}

// NewClientWithAPI creates a client over an existing API implementation
func NewClientWithAPI(api API, guildID string, logger *zap.Logger) *Client {
	return &Client{
		api:     api,
		guildID: guildID,
		logger:  logger,
	}
}

// GuildID returns the guild the client manages
func (c *Client) GuildID() string {
	return c.guildID
}

// ListEvents returns the guild's scheduled events
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	raw, err := c.api.GuildScheduledEvents(c.guildID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list guild events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, e := range raw {
		ev := Event{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Location:    e.EntityMetadata.Location,
			StartTime:   e.ScheduledStartTime,
		}
		if e.ScheduledEndTime != nil {
			ev.EndTime = *e.ScheduledEndTime
		}
		events = append(events, ev)
	}

	return events, nil
}

// CreateEvent creates an external guild event visible to guild members
func (c *Client) CreateEvent(ctx context.Context, ev Event) (*Event, error) {
	start := ev.StartTime.UTC()
	end := ev.EndTime.UTC()

	created, err := c.api.GuildScheduledEventCreate(c.guildID, &discordgo.GuildScheduledEventParams{
		Name:               ev.Name,
		Description:        ev.Description,
		ScheduledStartTime: &start,
		ScheduledEndTime:   &end,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		EntityMetadata: &discordgo.GuildScheduledEventEntityMetadata{
			Location: ev.Location,
		},
		PrivacyLevel: discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create guild event: %w", err)
	}

	c.logger.Debug("discord event created",
		zap.String("event_id", created.ID),
		zap.String("name", created.Name),
	)

	out := ev
	out.ID = created.ID
	return &out, nil
}

// DeleteEvent removes a guild scheduled event
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.api.GuildScheduledEventDelete(c.guildID, eventID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete guild event: %w", err)
	}

	c.logger.Debug("discord event deleted", zap.String("event_id", eventID))

	return nil
}
