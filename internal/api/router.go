package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/metrics"
	"github.com/alveusgg/sanctuary/internal/redis"
)

const (
	// PushTimeout is the execution budget of the push endpoints
	PushTimeout = 60 * time.Second

	defaultTimeout = 30 * time.Second
)

// RouterConfig holds the settings of the HTTP surface
type RouterConfig struct {
	// ActionSecret guards the action endpoints with a bearer token
	ActionSecret string
	// RateLimiter limits the public stream routes per client IP, nil disables it
	RateLimiter *redis.RateLimiter
}

// NewRouter mounts every route whose dependencies are set on h
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(RequestLogger(logger))

	auth := TokenAuth(cfg.ActionSecret)

	if h.deps.YouTube != nil && len(h.deps.YouTubeChannels) > 0 {
		r.Route("/stream/youtube", func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Use(RateLimitMiddleware(cfg.RateLimiter, logger, IPKeyFunc))

			keys := make([]string, 0, len(h.deps.YouTubeChannels))
			for key := range h.deps.YouTubeChannels {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			for _, key := range keys {
				r.Get("/"+key, h.LatestVideo(h.deps.YouTubeChannels[key]))
			}
		})
	}

	r.Route("/api", func(r chi.Router) {
		if h.deps.Deliverer != nil && h.deps.Batcher != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(PushTimeout))
				r.Use(auth)

				r.Post("/notifications/send-push", h.SendPush)
				r.Post("/notifications/batched-create-notification-pushes", h.BatchCreateNotificationPushes)
			})
		}

		if h.deps.Notifications != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(PushTimeout))
				r.Use(auth)

				r.Post("/notifications", h.CreateNotification)
				r.Post("/notifications/{id}/cancel", h.CancelNotification)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(defaultTimeout))

				r.Post("/push-subscriptions", h.Subscribe)
				r.Delete("/push-subscriptions", h.Unsubscribe)
			})
		}

		if h.deps.Calendar != nil {
			r.Route("/calendar-events", func(r chi.Router) {
				r.With(middleware.Timeout(defaultTimeout)).Get("/", h.ListCalendarEvents)

				r.Group(func(r chi.Router) {
					r.Use(auth)

					r.With(middleware.Timeout(defaultTimeout)).Post("/", h.CreateCalendarEvent)
					r.With(middleware.Timeout(defaultTimeout)).Put("/{id}", h.UpdateCalendarEvent)

					if h.deps.Generator != nil {
						r.With(middleware.Timeout(defaultTimeout)).Post("/generate", h.GenerateEvents)
					}
					if h.deps.Syncer != nil {
						r.Post("/sync/{platform}", h.SyncPlatform)
					}
				})
			})
		}

		if h.deps.TwitchStore != nil {
			r.With(middleware.Timeout(defaultTimeout), auth).Put("/twitch-channels/{username}", h.SaveTwitchChannel)
		}
	})

	if h.deps.Calendar != nil {
		r.With(middleware.Timeout(defaultTimeout)).Get("/calendar.ics", h.CalendarFeed)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}
