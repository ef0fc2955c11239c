package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/calendar"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/schedule"
)

// CalendarEventRequest is the editable part of a calendar event
type CalendarEventRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Category    string    `json:"category" validate:"required,max=100"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Link        string    `json:"link" validate:"required,url"`
	StartAt     time.Time `json:"startAt" validate:"required"`
	HasTime     bool      `json:"hasTime"`
}

func (req CalendarEventRequest) event() *db.CalendarEvent {
	return &db.CalendarEvent{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Link:        req.Link,
		StartAt:     req.StartAt,
		HasTime:     req.HasTime,
	}
}

// ListCalendarEvents handles GET /api/calendar-events?start=...&end=...&hasTime=true
func (h *Handler) ListCalendarEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := db.CalendarEventFilter{Start: h.now()}

	if s := q.Get("start"); s != "" {
		t, err := parseDateParam(s, h.deps.Location)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid start", "start must be RFC 3339 or YYYY-MM-DD")
			return
		}
		f.Start = t
	}

	if s := q.Get("end"); s != "" {
		t, err := parseDateParam(s, h.deps.Location)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid end", "end must be RFC 3339 or YYYY-MM-DD")
			return
		}
		if !t.After(f.Start) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid range", "end must be after start")
			return
		}
		f.End = t
	}

	if s := q.Get("hasTime"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid hasTime", "hasTime must be true or false")
			return
		}
		f.HasTime = &b
	}

	events, err := h.deps.Calendar.FindCalendarEvents(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list calendar events", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list calendar events", "")
		return
	}
	if events == nil {
		events = []*db.CalendarEvent{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  events,
		"count": len(events),
	})
}

// CreateCalendarEvent handles POST /api/calendar-events
func (h *Handler) CreateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	var req CalendarEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	ev := req.event()
	if err := h.deps.Calendar.CreateCalendarEvent(r.Context(), ev); err != nil {
		h.logger.Error("failed to create calendar event", zap.Error(err), zap.String("title", req.Title))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create calendar event", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, ev)
}

// UpdateCalendarEvent handles PUT /api/calendar-events/{id}
func (h *Handler) UpdateCalendarEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req CalendarEventRequest
	if !h.decode(w, r, &req) {
		return
	}

	ev := req.event()
	ev.ID = id
	if err := h.deps.Calendar.UpdateCalendarEvent(r.Context(), ev); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Calendar event not found", "")
			return
		}
		h.logger.Error("failed to update calendar event", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update calendar event", "")
		return
	}

	h.writeJSON(w, http.StatusOK, ev)
}

// GenerateEvents handles POST /api/calendar-events/generate
func (h *Handler) GenerateEvents(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	if err := h.deps.Generator.GenerateMonth(r.Context(), now); err != nil {
		h.logger.Error("failed to generate regular events", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "generate_error", "Failed to generate events", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"month": calendar.TargetMonth(now, h.deps.Location).Format("2006-01"),
	})
}

// SyncPlatform handles POST /api/calendar-events/sync/{platform}. Platform is
// "discord", "twitch" for every channel, or "twitch:{key}" for one channel.
func (h *Handler) SyncPlatform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platform := chi.URLParam(r, "platform")

	var (
		res schedule.Result
		err error
	)
	key, isChannel := strings.CutPrefix(platform, "twitch:")
	switch {
	case platform == "discord":
		res, err = h.deps.Syncer.SyncDiscord(ctx)
	case platform == "twitch":
		if err := h.deps.Syncer.SyncAllTwitch(ctx); err != nil {
			h.writeSyncError(w, platform, err)
			return
		}
		h.writeJSON(w, http.StatusOK, true)
		return
	case isChannel && key != "":
		res, err = h.deps.Syncer.SyncTwitch(ctx, key)
	default:
		h.writeError(w, http.StatusNotFound, "not_found", "Unknown platform", platform)
		return
	}

	if err != nil {
		h.writeSyncError(w, platform, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{
		"matched": res.Matched,
		"created": res.Created,
		"deleted": res.Deleted,
		"failed":  res.Failed,
	})
}

func (h *Handler) writeSyncError(w http.ResponseWriter, platform string, err error) {
	switch {
	case errors.Is(err, schedule.ErrUnknownChannel):
		h.writeError(w, http.StatusNotFound, "not_found", "Unknown channel", err.Error())
	case errors.Is(err, schedule.ErrPlatformDisabled):
		h.writeError(w, http.StatusServiceUnavailable, "platform_disabled", "Platform not configured", err.Error())
	case errors.Is(err, schedule.ErrMissingAccessToken):
		h.writeError(w, http.StatusConflict, "missing_credentials", "Missing access token", err.Error())
	default:
		h.logger.Error("schedule sync failed", zap.Error(err), zap.String("platform", platform))
		h.writeError(w, http.StatusBadGateway, "sync_error", "Schedule sync failed", "")
	}
}

// CalendarFeed handles GET /calendar.ics. The feed covers the previous month
// through three months ahead.
func (h *Handler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	events, err := h.deps.Calendar.FindCalendarEvents(r.Context(), db.CalendarEventFilter{
		Start: now.AddDate(0, -1, 0),
		End:   now.AddDate(0, 3, 0),
	})
	if err != nil {
		h.logger.Error("failed to load calendar feed", zap.Error(err))
		http.Error(w, "Calendar not available", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := calendar.WriteICS(&buf, h.deps.CalendarName, events, h.deps.Location); err != nil {
		h.logger.Error("failed to render calendar feed", zap.Error(err))
		http.Error(w, "Calendar not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write(buf.Bytes())
}

// parseDateParam accepts RFC 3339 or a plain date, read in loc
func parseDateParam(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}
