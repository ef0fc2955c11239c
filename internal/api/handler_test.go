package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/push"
	"github.com/alveusgg/sanctuary/internal/redis"
	"github.com/alveusgg/sanctuary/internal/schedule"
)

const testSecret = "s3cret"

var (
	ErrDatabaseError = errors.New("database error")
	testNow          = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

type mockDeliverer struct {
	result bool
	err    error
	got    []push.DeliveryRequest
}

func (m *mockDeliverer) Deliver(_ context.Context, req push.DeliveryRequest) (bool, error) {
	m.got = append(m.got, req)
	return m.result, m.err
}

type mockBatcher struct {
	result bool
	err    error
	calls  int
	ids    []uuid.UUID
}

func (m *mockBatcher) BatchDeliver(_ context.Context, _ uuid.UUID, _ int64, ids []uuid.UUID) (bool, error) {
	m.calls++
	m.ids = ids
	return m.result, m.err
}

type mockNotifications struct {
	created    *push.NotificationInput
	canceled   uuid.UUID
	subscribed *push.SubscriptionInput
	removed    string
	err        error
}

func (m *mockNotifications) CreateAndSend(_ context.Context, in push.NotificationInput) (*db.Notification, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.created = &in
	return &db.Notification{ID: uuid.New(), Message: in.Message, ExpiresAt: in.ExpiresAt}, true, nil
}

func (m *mockNotifications) Cancel(_ context.Context, id uuid.UUID) error {
	m.canceled = id
	return m.err
}

func (m *mockNotifications) Subscribe(_ context.Context, in push.SubscriptionInput) (*db.PushSubscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.subscribed = &in
	return &db.PushSubscription{ID: uuid.New(), Endpoint: in.Endpoint}, nil
}

func (m *mockNotifications) Unsubscribe(_ context.Context, endpoint string) error {
	m.removed = endpoint
	return m.err
}

type mockCalendar struct {
	events  []*db.CalendarEvent
	filter  db.CalendarEventFilter
	created *db.CalendarEvent
	updated *db.CalendarEvent
	err     error
}

func (m *mockCalendar) CreateCalendarEvent(_ context.Context, ev *db.CalendarEvent) error {
	if m.err != nil {
		return m.err
	}
	ev.ID = uuid.New()
	m.created = ev
	return nil
}

func (m *mockCalendar) UpdateCalendarEvent(_ context.Context, ev *db.CalendarEvent) error {
	if m.err != nil {
		return m.err
	}
	m.updated = ev
	return nil
}

func (m *mockCalendar) FindCalendarEvents(_ context.Context, f db.CalendarEventFilter) ([]*db.CalendarEvent, error) {
	m.filter = f
	return m.events, m.err
}

type mockGenerator struct {
	reference time.Time
	err       error
}

func (m *mockGenerator) GenerateMonth(_ context.Context, reference time.Time) error {
	m.reference = reference
	return m.err
}

type mockSyncer struct {
	twitchKey string
	all       int
	discord   int
	err       error
}

func (m *mockSyncer) SyncTwitch(_ context.Context, key string) (schedule.Result, error) {
	m.twitchKey = key
	return schedule.Result{Matched: 2, Created: 1}, m.err
}

func (m *mockSyncer) SyncAllTwitch(context.Context) error {
	m.all++
	return m.err
}

func (m *mockSyncer) SyncDiscord(context.Context) (schedule.Result, error) {
	m.discord++
	return schedule.Result{Deleted: 3}, m.err
}

type mockYouTube struct {
	answer string
	err    error
	key    string
	id     string
}

func (m *mockYouTube) LatestVideo(_ context.Context, key, channelID string) (string, error) {
	m.key, m.id = key, channelID
	return m.answer, m.err
}

type mockTwitchStore struct {
	saved *db.TwitchChannel
}

func (m *mockTwitchStore) SaveTwitchChannel(_ context.Context, c *db.TwitchChannel) error {
	m.saved = c
	return nil
}

type testDeps struct {
	deliverer     *mockDeliverer
	batcher       *mockBatcher
	notifications *mockNotifications
	calendar      *mockCalendar
	generator     *mockGenerator
	syncer        *mockSyncer
	youtube       *mockYouTube
	twitch        *mockTwitchStore
}

func newTestRouter(t *testing.T, idem *redis.IdempotencyService) (http.Handler, *testDeps) {
	t.Helper()

	td := &testDeps{
		deliverer:     &mockDeliverer{result: true},
		batcher:       &mockBatcher{result: true},
		notifications: &mockNotifications{},
		calendar:      &mockCalendar{},
		generator:     &mockGenerator{},
		syncer:        &mockSyncer{},
		youtube:       &mockYouTube{answer: "Meet Georgie - https://youtu.be/abc"},
		twitch:        &mockTwitchStore{},
	}

	h := NewHandler(Deps{
		Deliverer:     td.deliverer,
		Batcher:       td.batcher,
		Notifications: td.notifications,
		Calendar:      td.calendar,
		TwitchStore:   td.twitch,
		Generator:     td.generator,
		Syncer:        td.syncer,
		YouTube:       td.youtube,
		Idempotency:   idem,
		YouTubeChannels: map[string]data.YouTubeChannel{
			"alveus": {Key: "alveus", ID: "UCbJ-1yM55NHrR1GS9hhPuvg", Name: "Alveus Sanctuary"},
		},
		Location: time.UTC,
	}, zap.NewNop())
	h.now = func() time.Time { return testNow }

	return NewRouter(h, RouterConfig{ActionSecret: testSecret}, zap.NewNop()), td
}

func doRequest(router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func authed() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testSecret}
}

func decodeBool(t *testing.T, rec *httptest.ResponseRecorder) bool {
	t.Helper()
	var b bool
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("failed to decode boolean response: %v", err)
	}
	return b
}

func validDelivery() map[string]any {
	return map[string]any{
		"notificationId": uuid.New().String(),
		"subscriptionId": uuid.New().String(),
		"expiresAt":      testNow.Add(time.Hour).UnixMilli(),
		"message":        "Georgie is live!",
		"urgency":        push.UrgencyHigh,
	}
}

func TestSendPush(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(map[string]any)
		deliverErr     error
		deliverResult  bool
		expectedStatus int
		expectedBody   bool
	}{
		{
			name:           "delivered",
			deliverResult:  true,
			expectedStatus: http.StatusOK,
			expectedBody:   true,
		},
		{
			name:           "not delivered",
			deliverResult:  false,
			expectedStatus: http.StatusOK,
			expectedBody:   false,
		},
		{
			name:           "pipeline error reports false",
			deliverErr:     ErrDatabaseError,
			expectedStatus: http.StatusOK,
			expectedBody:   false,
		},
		{
			name:           "invalid urgency",
			mutate:         func(m map[string]any) { m["urgency"] = "URGENT" },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing message",
			mutate:         func(m map[string]any) { delete(m, "message") },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing expiry",
			mutate:         func(m map[string]any) { delete(m, "expiresAt") },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative attempt",
			mutate:         func(m map[string]any) { m["attempt"] = -1 },
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, td := newTestRouter(t, nil)
			td.deliverer.result = tt.deliverResult
			td.deliverer.err = tt.deliverErr

			body := validDelivery()
			if tt.mutate != nil {
				tt.mutate(body)
			}

			rec := doRequest(router, http.MethodPost, "/api/notifications/send-push", body, authed())
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}

			if tt.expectedStatus != http.StatusOK {
				if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
					t.Errorf("expected problem+json, got %q", ct)
				}
				if len(td.deliverer.got) != 0 {
					t.Error("expected no delivery for an invalid body")
				}
				return
			}

			if got := decodeBool(t, rec); got != tt.expectedBody {
				t.Errorf("expected %v, got %v", tt.expectedBody, got)
			}
		})
	}
}

func TestSendPush_MalformedJSON(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doRequest(router, http.MethodPost, "/api/notifications/send-push", "{not json", authed())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Type != "invalid_request" {
		t.Errorf("expected invalid_request, got %q", errResp.Type)
	}
}

func TestPushRoutes_RequireToken(t *testing.T) {
	router, td := newTestRouter(t, nil)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no header", nil},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}},
		{"wrong scheme", map[string]string{"Authorization": "Basic " + testSecret}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/api/notifications/send-push", validDelivery(), tt.headers)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}

	if len(td.deliverer.got) != 0 {
		t.Error("expected no delivery without a valid token")
	}
}

func TestBatchCreateNotificationPushes(t *testing.T) {
	router, td := newTestRouter(t, nil)

	ids := []string{uuid.New().String(), uuid.New().String()}
	body := map[string]any{
		"notificationId":  uuid.New().String(),
		"expiresAt":       testNow.Add(time.Hour).UnixMilli(),
		"subscriptionIds": ids,
	}

	rec := doRequest(router, http.MethodPost, "/api/notifications/batched-create-notification-pushes", body, authed())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !decodeBool(t, rec) {
		t.Error("expected true")
	}
	if len(td.batcher.ids) != 2 {
		t.Errorf("expected 2 subscription ids, got %d", len(td.batcher.ids))
	}

	td.batcher.result = false
	rec = doRequest(router, http.MethodPost, "/api/notifications/batched-create-notification-pushes", body, authed())
	if decodeBool(t, rec) {
		t.Error("expected false for an inactive notification")
	}

	delete(body, "subscriptionIds")
	rec = doRequest(router, http.MethodPost, "/api/notifications/batched-create-notification-pushes", body, authed())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without subscriptionIds, got %d", rec.Code)
	}
}

func TestBatchCreateNotificationPushes_Idempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idem := redis.NewIdempotencyService(redis.NewFromRedis(rdb, zap.NewNop()), zap.NewNop())

	router, td := newTestRouter(t, idem)

	body := map[string]any{
		"notificationId":  uuid.New().String(),
		"expiresAt":       testNow.Add(time.Hour).UnixMilli(),
		"subscriptionIds": []string{uuid.New().String()},
	}
	headers := authed()
	headers["Idempotency-Key"] = "batch-1"

	first := doRequest(router, http.MethodPost, "/api/notifications/batched-create-notification-pushes", body, headers)
	if first.Code != http.StatusOK || !decodeBool(t, first) {
		t.Fatalf("expected 200 true, got %d %s", first.Code, first.Body.String())
	}

	second := doRequest(router, http.MethodPost, "/api/notifications/batched-create-notification-pushes", body, headers)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.Code)
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("expected replayed response")
	}
	if !decodeBool(t, second) {
		t.Error("expected replayed true")
	}
	if td.batcher.calls != 1 {
		t.Errorf("expected 1 batch call, got %d", td.batcher.calls)
	}

	if _, err := idem.Reserve(context.Background(), batchIdempotencyScope, "batch-2"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	headers["Idempotency-Key"] = "batch-2"
	inFlight := doRequest(router, http.MethodPost, "/api/notifications/batched-create-notification-pushes", body, headers)
	if inFlight.Code != http.StatusConflict {
		t.Errorf("expected 409 for an in-flight key, got %d", inFlight.Code)
	}
}

func TestCreateNotification(t *testing.T) {
	router, td := newTestRouter(t, nil)

	body := map[string]any{
		"message":   "Feeding time",
		"urgency":   push.UrgencyNormal,
		"expiresAt": testNow.Add(2 * time.Hour).Format(time.RFC3339),
	}

	rec := doRequest(router, http.MethodPost, "/api/notifications", body, authed())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if td.notifications.created == nil || td.notifications.created.Message != "Feeding time" {
		t.Errorf("unexpected input %+v", td.notifications.created)
	}

	var resp struct {
		Notification db.Notification `json:"notification"`
		Sent         bool            `json:"sent"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Sent || resp.Notification.ID == uuid.Nil {
		t.Errorf("unexpected response %+v", resp)
	}

	body["expiresAt"] = testNow.Add(-time.Minute).Format(time.RFC3339)
	rec = doRequest(router, http.MethodPost, "/api/notifications", body, authed())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a past expiry, got %d", rec.Code)
	}
}

func TestCancelNotification(t *testing.T) {
	router, td := newTestRouter(t, nil)
	id := uuid.New()

	rec := doRequest(router, http.MethodPost, "/api/notifications/"+id.String()+"/cancel", nil, authed())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if td.notifications.canceled != id {
		t.Errorf("expected %s canceled, got %s", id, td.notifications.canceled)
	}

	rec = doRequest(router, http.MethodPost, "/api/notifications/not-a-uuid/cancel", nil, authed())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	td.notifications.err = db.ErrNotFound
	rec = doRequest(router, http.MethodPost, "/api/notifications/"+id.String()+"/cancel", nil, authed())
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestPushSubscriptions(t *testing.T) {
	router, td := newTestRouter(t, nil)

	body := map[string]any{
		"endpoint": "https://push.example.com/send/abc",
		"p256dh":   "key",
		"auth":     "secret",
	}

	rec := doRequest(router, http.MethodPost, "/api/push-subscriptions", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if td.notifications.subscribed == nil || td.notifications.subscribed.Auth != "secret" {
		t.Errorf("unexpected subscription %+v", td.notifications.subscribed)
	}

	rec = doRequest(router, http.MethodPost, "/api/push-subscriptions", map[string]any{"endpoint": "nope"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodDelete, "/api/push-subscriptions", map[string]any{"endpoint": "https://push.example.com/send/abc"}, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if td.notifications.removed != "https://push.example.com/send/abc" {
		t.Errorf("unexpected endpoint %q", td.notifications.removed)
	}
}

func TestListCalendarEvents(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus int
		check          func(*testing.T, db.CalendarEventFilter)
	}{
		{
			name:           "defaults to now",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, f db.CalendarEventFilter) {
				if !f.Start.Equal(testNow) || !f.End.IsZero() || f.HasTime != nil {
					t.Errorf("unexpected filter %+v", f)
				}
			},
		},
		{
			name:           "date range and time flag",
			query:          "?start=2026-06-01&end=2026-07-01&hasTime=true",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, f db.CalendarEventFilter) {
				if f.Start.Format(time.DateOnly) != "2026-06-01" || f.End.Format(time.DateOnly) != "2026-07-01" {
					t.Errorf("unexpected range %v - %v", f.Start, f.End)
				}
				if f.HasTime == nil || !*f.HasTime {
					t.Error("expected hasTime filter")
				}
			},
		},
		{name: "bad start", query: "?start=yesterday", expectedStatus: http.StatusBadRequest},
		{name: "end before start", query: "?start=2026-06-02&end=2026-06-01", expectedStatus: http.StatusBadRequest},
		{name: "bad flag", query: "?hasTime=maybe", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, td := newTestRouter(t, nil)
			td.calendar.events = []*db.CalendarEvent{{ID: uuid.New(), Title: "Animal Care Chats", StartAt: testNow}}

			rec := doRequest(router, http.MethodGet, "/api/calendar-events"+tt.query, nil, nil)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, td.calendar.filter)
			}
		})
	}
}

func TestCalendarEventWrites(t *testing.T) {
	router, td := newTestRouter(t, nil)

	body := map[string]any{
		"title":    "Nick Stream",
		"category": "Alveus Regular Stream",
		"link":     "https://twitch.tv/AlveusSanctuary",
		"startAt":  "2026-06-03T19:00:00Z",
		"hasTime":  true,
	}

	rec := doRequest(router, http.MethodPost, "/api/calendar-events", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/api/calendar-events", body, authed())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if td.calendar.created == nil || !td.calendar.created.HasTime {
		t.Errorf("unexpected event %+v", td.calendar.created)
	}

	id := uuid.New()
	rec = doRequest(router, http.MethodPut, "/api/calendar-events/"+id.String(), body, authed())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if td.calendar.updated == nil || td.calendar.updated.ID != id {
		t.Errorf("unexpected update %+v", td.calendar.updated)
	}

	td.calendar.err = db.ErrNotFound
	rec = doRequest(router, http.MethodPut, "/api/calendar-events/"+id.String(), body, authed())
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	delete(body, "title")
	rec = doRequest(router, http.MethodPost, "/api/calendar-events", body, authed())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without title, got %d", rec.Code)
	}
}

func TestGenerateEvents(t *testing.T) {
	router, td := newTestRouter(t, nil)

	rec := doRequest(router, http.MethodPost, "/api/calendar-events/generate", nil, authed())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !td.generator.reference.Equal(testNow) {
		t.Errorf("expected reference %v, got %v", testNow, td.generator.reference)
	}
	if !strings.Contains(rec.Body.String(), "2026-07") {
		t.Errorf("expected target month in body, got %s", rec.Body.String())
	}
}

func TestSyncPlatform(t *testing.T) {
	tests := []struct {
		name           string
		platform       string
		err            error
		expectedStatus int
		check          func(*testing.T, *mockSyncer)
	}{
		{
			name:           "discord",
			platform:       "discord",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, s *mockSyncer) {
				if s.discord != 1 {
					t.Errorf("expected 1 discord sync, got %d", s.discord)
				}
			},
		},
		{
			name:           "all twitch channels",
			platform:       "twitch",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, s *mockSyncer) {
				if s.all != 1 {
					t.Errorf("expected 1 twitch sync, got %d", s.all)
				}
			},
		},
		{
			name:           "one twitch channel",
			platform:       "twitch:maya",
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, s *mockSyncer) {
				if s.twitchKey != "maya" {
					t.Errorf("expected maya, got %q", s.twitchKey)
				}
			},
		},
		{name: "unknown platform", platform: "youtube", expectedStatus: http.StatusNotFound},
		{name: "unknown channel", platform: "twitch:nobody", err: schedule.ErrUnknownChannel, expectedStatus: http.StatusNotFound},
		{name: "missing token", platform: "twitch", err: schedule.ErrMissingAccessToken, expectedStatus: http.StatusConflict},
		{name: "disabled", platform: "discord", err: schedule.ErrPlatformDisabled, expectedStatus: http.StatusServiceUnavailable},
		{name: "upstream failure", platform: "discord", err: errors.New("boom"), expectedStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, td := newTestRouter(t, nil)
			td.syncer.err = tt.err

			rec := doRequest(router, http.MethodPost, "/api/calendar-events/sync/"+tt.platform, nil, authed())
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, td.syncer)
			}
		})
	}
}

func TestCalendarFeed(t *testing.T) {
	router, td := newTestRouter(t, nil)
	desc := "Join animal care staff"
	td.calendar.events = []*db.CalendarEvent{{
		ID:          uuid.New(),
		Title:       "Animal Care Chats",
		Category:    "Alveus Regular Stream",
		Description: &desc,
		Link:        "https://twitch.tv/AlveusSanctuary",
		StartAt:     testNow,
		HasTime:     true,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}}

	rec := doRequest(router, http.MethodGet, "/calendar.ics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "SUMMARY:Animal Care Chats") {
		t.Errorf("expected event in feed, got %s", rec.Body.String())
	}
	if !td.calendar.filter.Start.Equal(testNow.AddDate(0, -1, 0)) {
		t.Errorf("unexpected feed start %v", td.calendar.filter.Start)
	}
}

func TestLatestVideo(t *testing.T) {
	router, td := newTestRouter(t, nil)

	rec := doRequest(router, http.MethodGet, "/stream/youtube/alveus", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "Meet Georgie - https://youtu.be/abc" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != youTubeCacheControl {
		t.Errorf("unexpected cache control %q", cc)
	}
	if td.youtube.key != "alveus" || td.youtube.id != "UCbJ-1yM55NHrR1GS9hhPuvg" {
		t.Errorf("unexpected lookup %s/%s", td.youtube.key, td.youtube.id)
	}

	rec = doRequest(router, http.MethodGet, "/stream/youtube/unknown", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown channel, got %d", rec.Code)
	}

	td.youtube.err = errors.New("quota exceeded")
	rec = doRequest(router, http.MethodGet, "/stream/youtube/alveus", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != youTubeUnavailable {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("expected failures not to be cacheable")
	}
}

func TestSaveTwitchChannel(t *testing.T) {
	router, td := newTestRouter(t, nil)
	token := "oauth-token"

	rec := doRequest(router, http.MethodPut, "/api/twitch-channels/AlveusSanctuary",
		map[string]any{"broadcasterId": "636587384", "accessToken": token}, authed())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if td.twitch.saved == nil || td.twitch.saved.Username != "AlveusSanctuary" || *td.twitch.saved.AccessToken != token {
		t.Errorf("unexpected saved channel %+v", td.twitch.saved)
	}
	if strings.Contains(rec.Body.String(), token) {
		t.Error("expected access token not to be echoed")
	}

	rec = doRequest(router, http.MethodPut, "/api/twitch-channels/AlveusSanctuary",
		map[string]any{"broadcasterId": "abc"}, authed())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric broadcaster id, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doRequest(router, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}
