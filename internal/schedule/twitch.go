package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/calendar"
	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/twitch"
)

const twitchTimeLayout = "2006-01-02T15:04:05Z"

// ErrMissingAccessToken means the broadcaster never linked their account or
// the stored token was removed
var ErrMissingAccessToken = errors.New("missing twitch access token")

// TwitchAPI is the Helix schedule client
type TwitchAPI interface {
	GetSchedule(ctx context.Context, accessToken, broadcasterID string, start time.Time, after string) (*twitch.SchedulePage, error)
	CreateSegment(ctx context.Context, accessToken, broadcasterID string, seg twitch.NewSegment) error
	DeleteSegment(ctx context.Context, accessToken, broadcasterID, segmentID string) error
}

// TwitchPlatform mirrors events in a channel's categories to its stream schedule
type TwitchPlatform struct {
	api         TwitchAPI
	channel     data.TwitchChannel
	accessToken string
	broadcaster string
	timezone    string
	logger      *zap.Logger
}

// NewTwitchPlatform builds the platform for channel. creds must carry an access token.
func NewTwitchPlatform(api TwitchAPI, channel data.TwitchChannel, creds *db.TwitchChannel, timezone string, logger *zap.Logger) (*TwitchPlatform, error) {
	if creds == nil || creds.AccessToken == nil || *creds.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	return &TwitchPlatform{
		api:         api,
		channel:     channel,
		accessToken: *creds.AccessToken,
		broadcaster: creds.BroadcasterID,
		timezone:    timezone,
		logger:      logger,
	}, nil
}

func (p *TwitchPlatform) Name() string {
	return "twitch:" + p.channel.Key
}

func (p *TwitchPlatform) Include(ev *db.CalendarEvent) bool {
	return p.channel.Includes(ev.Category)
}

func (p *TwitchPlatform) Canonical(ev *db.CalendarEvent) Entry {
	return Entry{
		Title:     calendar.FormattedTitle(ev.Title, ev.Link, p.channel.Username, twitch.MaxTitleLength),
		StartTime: ev.StartAt.UTC().Format(twitchTimeLayout),
		Start:     ev.StartAt.UTC(),
	}
}

// List pages through the schedule until Helix stops returning a cursor. A
// failure on the first page is an error; a later failure ends paging with
// the segments fetched so far.
func (p *TwitchPlatform) List(ctx context.Context, from time.Time) ([]Entry, error) {
	var entries []Entry
	cursor := ""

	for page := 0; ; page++ {
		resp, err := p.api.GetSchedule(ctx, p.accessToken, p.broadcaster, from, cursor)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			p.logger.Warn("stopped paging twitch schedule", zap.Error(err), zap.Int("page", page))
			break
		}

		for _, seg := range resp.Segments {
			entries = append(entries, segmentEntry(seg))
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	return entries, nil
}

func (p *TwitchPlatform) Create(ctx context.Context, e Entry) error {
	return p.api.CreateSegment(ctx, p.accessToken, p.broadcaster, twitch.NewSegment{
		StartTime: e.Start,
		Timezone:  p.timezone,
		Duration:  calendar.EventDuration,
		Title:     e.Title,
	})
}

func (p *TwitchPlatform) Delete(ctx context.Context, e Entry) error {
	return p.api.DeleteSegment(ctx, p.accessToken, p.broadcaster, e.ID)
}

// Delay is zero, the Helix client surfaces rate limit errors instead
func (p *TwitchPlatform) Delay() time.Duration {
	return 0
}

func segmentEntry(seg twitch.Segment) Entry {
	e := Entry{
		ID:        seg.ID,
		Title:     seg.Title,
		StartTime: seg.StartTime,
	}
	if t, err := time.Parse(time.RFC3339, seg.StartTime); err == nil {
		e.Start = t.UTC()
		e.StartTime = e.Start.Format(twitchTimeLayout)
	} else {
		e.StartTime = strings.TrimSpace(seg.StartTime)
	}
	return e
}
