// Package twitch wraps the Helix stream schedule endpoints.
package twitch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nicklaw5/helix/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.twitch.tv/helix"

	// MaxTitleLength is the longest segment title Helix accepts
	MaxTitleLength = 140

	pageSize = 25
)

// Client calls the Twitch Helix API on behalf of a broadcaster
type Client struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the Twitch client configuration
type Config struct {
	ClientID string // Application client ID (required)
	BaseURL  string // Helix base URL (default: https://api.twitch.tv/helix)
	Timeout  time.Duration
}

// NewClient creates a new Helix client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("TWITCH_CLIENT_ID is required for Twitch schedule sync")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		clientID: cfg.ClientID,
		baseURL:  cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// Segment is a stream schedule segment
type Segment struct {
	ID          string
	StartTime   string
	EndTime     string
	Title       string
	IsRecurring bool
}

// SchedulePage is one page of a broadcaster's schedule
type SchedulePage struct {
	Segments []Segment
	Cursor   string
}

// NewSegment describes a non-recurring segment to create
type NewSegment struct {
	StartTime time.Time
	Timezone  string
	Duration  time.Duration
	Title     string
}

// APIError is a non-2xx Helix response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api returned %d: %s", e.Status, e.Message)
}

// contextDoer binds every Helix request to the caller's context
type contextDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

// helixFor builds a Helix client acting as the broadcaster. Each call gets its
// own client since the user token differs per channel.
func (c *Client) helixFor(ctx context.Context, accessToken string) (*helix.Client, error) {
	client, err := helix.NewClient(&helix.Options{
		ClientID:        c.clientID,
		UserAccessToken: accessToken,
		APIBaseURL:      c.baseURL,
		HTTPClient:      contextDoer{ctx: ctx, client: c.httpClient},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}
	return client, nil
}

func apiError(resp helix.ResponseCommon) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := resp.ErrorMessage
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// GetSchedule fetches one page of segments starting at start. A broadcaster
// without a schedule yields an empty page.
func (c *Client) GetSchedule(ctx context.Context, accessToken, broadcasterID string, start time.Time, after string) (*SchedulePage, error) {
	client, err := c.helixFor(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetSchedule(&helix.GetScheduleParams{
		BroadcasterID: broadcasterID,
		StartTime:     start.UTC(),
		First:         pageSize,
		After:         after,
	})
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &SchedulePage{}, nil
	}
	if err := apiError(resp.ResponseCommon); err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	page := &SchedulePage{Cursor: resp.Data.Pagination.Cursor}
	for _, seg := range resp.Data.Schedule.Segments {
		page.Segments = append(page.Segments, Segment{
			ID:          seg.ID,
			StartTime:   formatTime(seg.StartTime.Time),
			EndTime:     formatTime(seg.EndTime.Time),
			Title:       seg.Title,
			IsRecurring: seg.IsRecurring,
		})
	}

	return page, nil
}

// CreateSegment adds a non-recurring segment to the broadcaster's schedule
func (c *Client) CreateSegment(ctx context.Context, accessToken, broadcasterID string, seg NewSegment) error {
	client, err := c.helixFor(ctx, accessToken)
	if err != nil {
		return err
	}

	resp, err := client.CreateScheduleSegment(&helix.CreateScheduleSegmentParams{
		BroadcasterID: broadcasterID,
		StartTime:     seg.StartTime.UTC(),
		Timezone:      seg.Timezone,
		Duration:      strconv.Itoa(int(seg.Duration / time.Minute)),
		IsRecurring:   false,
		Title:         seg.Title,
	})
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	if err := apiError(resp.ResponseCommon); err != nil {
		return fmt.Errorf("create segment: %w", err)
	}

	c.logger.Debug("twitch segment created",
		zap.String("broadcaster_id", broadcasterID),
		zap.String("title", seg.Title),
		zap.Time("start_time", seg.StartTime),
	)

	return nil
}

// DeleteSegment removes a segment from the broadcaster's schedule
func (c *Client) DeleteSegment(ctx context.Context, accessToken, broadcasterID, segmentID string) error {
	client, err := c.helixFor(ctx, accessToken)
	if err != nil {
		return err
	}

	resp, err := client.DeleteScheduleSegment(&helix.DeleteScheduleSegmentParams{
		BroadcasterID: broadcasterID,
		ID:            segmentID,
	})
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if err := apiError(resp.ResponseCommon); err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}

	c.logger.Debug("twitch segment deleted",
		zap.String("broadcaster_id", broadcasterID),
		zap.String("segment_id", segmentID),
	)

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
