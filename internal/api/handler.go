package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/push"
	"github.com/alveusgg/sanctuary/internal/redis"
	"github.com/alveusgg/sanctuary/internal/schedule"
)

// Deliverer runs a single push delivery attempt
type Deliverer interface {
	Deliver(ctx context.Context, req push.DeliveryRequest) (bool, error)
}

// BatchDeliverer fans a notification out to subscriptions
type BatchDeliverer interface {
	BatchDeliver(ctx context.Context, notificationID uuid.UUID, expiresAt int64, subscriptionIDs []uuid.UUID) (bool, error)
}

// NotificationService manages notifications and subscriptions
type NotificationService interface {
	CreateAndSend(ctx context.Context, in push.NotificationInput) (*db.Notification, bool, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Subscribe(ctx context.Context, in push.SubscriptionInput) (*db.PushSubscription, error)
	Unsubscribe(ctx context.Context, endpoint string) error
}

// CalendarStore defines the calendar event database operations
type CalendarStore interface {
	CreateCalendarEvent(ctx context.Context, ev *db.CalendarEvent) error
	UpdateCalendarEvent(ctx context.Context, ev *db.CalendarEvent) error
	FindCalendarEvents(ctx context.Context, f db.CalendarEventFilter) ([]*db.CalendarEvent, error)
}

// TwitchChannelStore saves broadcaster credentials
type TwitchChannelStore interface {
	SaveTwitchChannel(ctx context.Context, c *db.TwitchChannel) error
}

// Generator creates the regular events of the next month
type Generator interface {
	GenerateMonth(ctx context.Context, reference time.Time) error
}

// ScheduleSyncer mirrors the calendar to external platforms
type ScheduleSyncer interface {
	SyncTwitch(ctx context.Context, key string) (schedule.Result, error)
	SyncAllTwitch(ctx context.Context) error
	SyncDiscord(ctx context.Context) (schedule.Result, error)
}

// LatestVideoService answers the latest video route
type LatestVideoService interface {
	LatestVideo(ctx context.Context, key, channelID string) (string, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Deps are the handler dependencies. Nil optional fields disable the
// routes or features that need them.
type Deps struct {
	Deliverer     Deliverer
	Batcher       BatchDeliverer
	Notifications NotificationService
	Calendar      CalendarStore
	TwitchStore   TwitchChannelStore
	Generator     Generator
	Syncer        ScheduleSyncer
	YouTube       LatestVideoService
	Idempotency   *redis.IdempotencyService // nil if Redis not configured

	YouTubeChannels map[string]data.YouTubeChannel
	CalendarName    string
	Location        *time.Location
}

// Handler holds dependencies for API handlers
type Handler struct {
	deps     Deps
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.CalendarName == "" {
		deps.CalendarName = "Alveus Sanctuary"
	}
	return &Handler{
		deps:     deps,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Validation failed", validationDetail(err))
		return false
	}

	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, "; ")
}

func (h *Handler) pathUUID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid ID", "ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response in problem+json format
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
