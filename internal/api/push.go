package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/metrics"
	"github.com/alveusgg/sanctuary/internal/push"
	"github.com/alveusgg/sanctuary/internal/redis"
)

const batchIdempotencyScope = "batch"

// BatchRequest is the body of the batched push endpoint. ExpiresAt is in
// Unix milliseconds.
type BatchRequest struct {
	NotificationID  uuid.UUID   `json:"notificationId" validate:"required"`
	ExpiresAt       int64       `json:"expiresAt" validate:"required"`
	SubscriptionIDs []uuid.UUID `json:"subscriptionIds" validate:"required,dive,required"`
}

// UnsubscribeRequest identifies a subscription by its endpoint
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// SendPush handles POST /api/notifications/send-push
func (h *Handler) SendPush(w http.ResponseWriter, r *http.Request) {
	var req push.DeliveryRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.deps.Deliverer.Deliver(r.Context(), req)
	if err != nil {
		h.logger.Error("push delivery failed",
			zap.Error(err),
			zap.String("notification_id", req.NotificationID.String()),
			zap.String("subscription_id", req.SubscriptionID.String()),
		)
		h.writeJSON(w, http.StatusOK, false)
		return
	}

	h.writeJSON(w, http.StatusOK, ok)
}

// BatchCreateNotificationPushes handles POST /api/notifications/batched-create-notification-pushes.
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) BatchCreateNotificationPushes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idempotencyKey := r.Header.Get("Idempotency-Key")

	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	if idempotencyKey != "" && h.deps.Idempotency != nil {
		cached, err := h.deps.Idempotency.CheckOrReserve(ctx, batchIdempotencyScope, idempotencyKey)
		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
			idempotencyKey = ""
		} else if cached != nil {
			metrics.RecordIdempotencyHit()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replayed", "true")
			w.WriteHeader(cached.StatusCode)
			_, _ = w.Write(cached.Body)
			return
		}
	} else {
		idempotencyKey = ""
	}

	dispatched, err := h.deps.Batcher.BatchDeliver(ctx, req.NotificationID, req.ExpiresAt, req.SubscriptionIDs)
	if err != nil {
		h.logger.Error("batch delivery failed",
			zap.Error(err),
			zap.String("notification_id", req.NotificationID.String()),
			zap.Int("subscriptions", len(req.SubscriptionIDs)),
		)
		if idempotencyKey != "" {
			if err := h.deps.Idempotency.Release(ctx, batchIdempotencyScope, idempotencyKey); err != nil {
				h.logger.Warn("failed to release idempotency key", zap.Error(err))
			}
		}
		h.writeJSON(w, http.StatusOK, false)
		return
	}

	if idempotencyKey != "" {
		body, _ := json.Marshal(dispatched)
		result := &redis.IdempotencyResult{StatusCode: http.StatusOK, Body: body}
		if err := h.deps.Idempotency.Store(ctx, batchIdempotencyScope, idempotencyKey, result); err != nil {
			h.logger.Warn("failed to store idempotency result",
				zap.Error(err),
				zap.String("idempotency_key", idempotencyKey),
			)
		}
	}

	h.writeJSON(w, http.StatusOK, dispatched)
}

// CreateNotification handles POST /api/notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var in push.NotificationInput
	if !h.decode(w, r, &in) {
		return
	}
	if !in.ExpiresAt.After(h.now()) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid expiresAt", "expiresAt must be in the future")
		return
	}

	n, sent, err := h.deps.Notifications.CreateAndSend(r.Context(), in)
	if err != nil && n == nil {
		h.logger.Error("failed to create notification", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create notification", "")
		return
	}
	if err != nil {
		h.logger.Error("failed to send notification",
			zap.Error(err),
			zap.String("notification_id", n.ID.String()),
		)
	}

	h.logger.Info("notification created",
		zap.String("id", n.ID.String()),
		zap.Bool("sent", sent),
	)

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"notification": n,
		"sent":         sent,
	})
}

// CancelNotification handles POST /api/notifications/{id}/cancel
func (h *Handler) CancelNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.deps.Notifications.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.logger.Error("failed to cancel notification", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to cancel notification", "")
		return
	}

	h.writeJSON(w, http.StatusOK, true)
}

// Subscribe handles POST /api/push-subscriptions
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var in push.SubscriptionInput
	if !h.decode(w, r, &in) {
		return
	}

	sub, err := h.deps.Notifications.Subscribe(r.Context(), in)
	if err != nil {
		h.logger.Error("failed to save subscription", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save subscription", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": sub.ID.String()})
}

// Unsubscribe handles DELETE /api/push-subscriptions
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.deps.Notifications.Unsubscribe(r.Context(), req.Endpoint); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Subscription not found", "")
			return
		}
		h.logger.Error("failed to remove subscription", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to remove subscription", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
