package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
)

const (
	youTubeCacheControl = "max-age=1800, s-maxage=1800, stale-while-revalidate=300"
	youTubeUnavailable  = "YouTube data not available"
)

// TwitchChannelRequest links broadcaster credentials to a username
type TwitchChannelRequest struct {
	BroadcasterID string  `json:"broadcasterId" validate:"required,numeric"`
	AccessToken   *string `json:"accessToken,omitempty"`
}

// LatestVideo returns the handler for GET /stream/youtube/{channel}, bound to
// one known channel.
func (h *Handler) LatestVideo(channel data.YouTubeChannel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answer, err := h.deps.YouTube.LatestVideo(r.Context(), channel.Key, channel.ID)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err != nil {
			h.logger.Error("failed to fetch latest video",
				zap.Error(err),
				zap.String("channel", channel.Key),
			)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(youTubeUnavailable))
			return
		}

		w.Header().Set("Cache-Control", youTubeCacheControl)
		_, _ = w.Write([]byte(answer))
	}
}

// SaveTwitchChannel handles PUT /api/twitch-channels/{username}. A missing
// access token clears the stored one.
func (h *Handler) SaveTwitchChannel(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req TwitchChannelRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := &db.TwitchChannel{
		Username:      username,
		BroadcasterID: req.BroadcasterID,
		AccessToken:   req.AccessToken,
	}
	if err := h.deps.TwitchStore.SaveTwitchChannel(r.Context(), c); err != nil {
		h.logger.Error("failed to save twitch channel", zap.Error(err), zap.String("username", username))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save twitch channel", "")
		return
	}

	h.logger.Info("twitch channel linked",
		zap.String("username", username),
		zap.Bool("has_token", c.AccessToken != nil && *c.AccessToken != ""),
	)

	h.writeJSON(w, http.StatusOK, c)
}
