package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{ClientID: "client-id", BaseURL: server.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNewClient_RequiresClientID(t *testing.T) {
	if _, err := NewClient(Config{}, zap.NewNop()); err == nil {
		t.Error("expected error without client id")
	}
}

func TestGetSchedule(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/schedule" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("Client-Id"); got != "client-id" {
			t.Errorf("unexpected client id %q", got)
		}

		q := r.URL.Query()
		if q.Get("broadcaster_id") != "123" {
			t.Errorf("unexpected broadcaster_id %q", q.Get("broadcaster_id"))
		}
		if q.Get("first") != "25" {
			t.Errorf("unexpected page size %q", q.Get("first"))
		}
		if q.Get("after") != "page-1" {
			t.Errorf("unexpected cursor %q", q.Get("after"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"segments": [
					{"id": "seg-1", "start_time": "2026-06-01T19:30:00Z", "title": "Animal Care Chats"}
				],
				"broadcaster_id": "123"
			},
			"pagination": {"cursor": "page-2"}
		}`))
	})

	page, err := client.GetSchedule(context.Background(), "token", "123", start, "page-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(page.Segments) != 1 || page.Segments[0].ID != "seg-1" {
		t.Fatalf("unexpected segments %+v", page.Segments)
	}
	if page.Segments[0].StartTime != "2026-06-01T19:30:00Z" || page.Segments[0].Title != "Animal Care Chats" {
		t.Errorf("unexpected segment %+v", page.Segments[0])
	}
	if page.Cursor != "page-2" {
		t.Errorf("expected cursor page-2, got %q", page.Cursor)
	}
}

func TestGetSchedule_NotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not Found","status":404,"message":"segments were not found"}`))
	})

	page, err := client.GetSchedule(context.Background(), "token", "123", time.Now(), "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(page.Segments) != 0 || page.Cursor != "" {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestGetSchedule_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`))
	})

	_, err := client.GetSchedule(context.Background(), "bad", "123", time.Now(), "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid OAuth token" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}

type createSegmentRequest struct {
	StartTime   string `json:"start_time"`
	Timezone    string `json:"timezone"`
	Duration    string `json:"duration"`
	IsRecurring bool   `json:"is_recurring"`
	Title       string `json:"title"`
}

func TestCreateSegment(t *testing.T) {
	var got createSegmentRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/schedule/segment" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("broadcaster_id") != "123" {
			t.Errorf("unexpected broadcaster_id")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"segments":[]}}`))
	})

	err := client.CreateSegment(context.Background(), "token", "123", NewSegment{
		StartTime: time.Date(2026, 6, 1, 19, 30, 0, 0, time.UTC),
		Timezone:  "America/Chicago",
		Duration:  time.Hour,
		Title:     "Animal Care Chats",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := createSegmentRequest{
		StartTime: "2026-06-01T19:30:00Z",
		Timezone:  "America/Chicago",
		Duration:  "60",
		Title:     "Animal Care Chats",
	}
	if got != want {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestCreateSegment_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Bad Request","status":400,"message":"segment overlaps"}`))
	})

	err := client.CreateSegment(context.Background(), "token", "123", NewSegment{
		StartTime: time.Date(2026, 6, 1, 19, 30, 0, 0, time.UTC),
		Timezone:  "America/Chicago",
		Duration:  time.Hour,
		Title:     "Animal Care Chats",
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "segment overlaps" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}

func TestDeleteSegment(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete || r.URL.Path != "/schedule/segment" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("id") != "seg-1" {
			t.Errorf("unexpected segment id %q", r.URL.Query().Get("id"))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.DeleteSegment(context.Background(), "token", "123", "seg-1"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !called {
		t.Error("expected delete request")
	}
}
