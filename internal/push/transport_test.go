package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

func testKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("generate auth: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func TestWebPushTransport_Send(t *testing.T) {
	var ttl, urgency, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ttl = r.Header.Get("TTL")
		urgency = r.Header.Get("Urgency")
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate vapid keys: %v", err)
	}
	p256dh, secret := testKeys(t)

	transport := NewWebPushTransport(VAPIDConfig{
		Subject:    "ops@example.com",
		PublicKey:  public,
		PrivateKey: private,
	}, server.Client(), zap.NewNop())

	status, err := transport.Send(context.Background(), Message{
		Endpoint: server.URL + "/push/abc",
		P256dh:   p256dh,
		Auth:     secret,
		Payload:  []byte(`{"title":"t"}`),
		TTL:      60,
		Urgency:  webpush.UrgencyHigh,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if status != http.StatusGone {
		t.Errorf("expected status 410, got %d", status)
	}
	if ttl != "60" || urgency != "high" {
		t.Errorf("unexpected headers TTL=%q Urgency=%q", ttl, urgency)
	}
	if auth == "" {
		t.Error("expected VAPID authorization header")
	}
}

func TestWebPushTransport_InvalidKeys(t *testing.T) {
	transport := NewWebPushTransport(VAPIDConfig{}, nil, zap.NewNop())

	_, err := transport.Send(context.Background(), Message{
		Endpoint: "http://127.0.0.1:1/push",
		P256dh:   "not-a-key",
		Auth:     "x",
	})
	if err == nil {
		t.Error("expected error")
	}
}
