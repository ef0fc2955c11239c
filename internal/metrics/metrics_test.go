package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestRecordRequest(t *testing.T) {
	RecordRequest("GET", "/test", 200, 100*time.Millisecond)
	RecordRequest("POST", "/test", 201, 50*time.Millisecond)
	RecordRequest("GET", "/test", 404, 10*time.Millisecond)
}

func TestRecordEventsGenerated(t *testing.T) {
	RecordEventsGenerated(34)
	RecordEventsGenerated(0)
}

func TestRecordScheduleSync(t *testing.T) {
	RecordScheduleSync("discord", 3, 1, 1, 0, nil)
	RecordScheduleSync("twitch:alveus", 0, 0, 0, 0, errors.New("missing token"))
}

func TestRecordPushMetrics(t *testing.T) {
	RecordPushDelivery("delivered")
	RecordPushDelivery("gone")
	RecordPushBatch("dispatched")
	RecordPushBatch("aborted")
	RecordPushRetry()
	AddPushInFlight(2)
	AddPushInFlight(-2)
}

func TestSetSQSMessagesInFlight(t *testing.T) {
	SetSQSMessagesInFlight(10)
	SetSQSMessagesInFlight(0)
}

func TestRecordIdempotencyHit(t *testing.T) {
	RecordIdempotencyHit()
}

func TestRecordRateLimitRejection(t *testing.T) {
	RecordRateLimitRejection("/stream/youtube/alveus")
}

func TestRecordYouTubeLookup(t *testing.T) {
	RecordYouTubeLookup("alveus", "cache")
	RecordYouTubeLookup("alveus", "api")
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("webpush", 1)
	SetCircuitBreakerState("webpush", 0)
}

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Fatal("Handler should not return nil")
	}

	RecordPushDelivery("delivered")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "sanctuary_push_deliveries_total") {
		t.Error("expected push delivery metric in output")
	}
}

func TestMiddleware(t *testing.T) {
	innerCalled := false

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest("POST", "/items/42", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if !innerCalled {
		t.Error("inner handler should have been called")
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	req := httptest.NewRequest("GET", "/nowhere", nil)
	if got := routePattern(req); got != "unmatched" {
		t.Errorf("expected unmatched, got %q", got)
	}
}

func TestResponseWriter_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.Write([]byte("test"))

	if rw.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", rw.status)
	}
}

func TestResponseWriter_ExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rw.status)
	}
}
