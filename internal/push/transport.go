package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

// Message is an encrypted push addressed to one browser subscription
type Message struct {
	Endpoint string
	P256dh   string
	Auth     string
	Payload  []byte
	TTL      int
	Urgency  webpush.Urgency
}

// Transport sends a message and reports the push service's status code
type Transport interface {
	Send(ctx context.Context, msg Message) (int, error)
}

// VAPIDConfig identifies this server to push services. Subject is an email
// address, with or without the mailto: scheme, or an https URL.
type VAPIDConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
}

// WebPushTransport sends messages with the Web Push protocol
type WebPushTransport struct {
	vapid  VAPIDConfig
	client *http.Client
	logger *zap.Logger
}

// NewWebPushTransport creates a transport signing requests with vapid
func NewWebPushTransport(vapid VAPIDConfig, client *http.Client, logger *zap.Logger) *WebPushTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushTransport{vapid: vapid, client: client, logger: logger}
}

func (t *WebPushTransport) Send(ctx context.Context, msg Message) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, msg.Payload, &webpush.Subscription{
		Endpoint: msg.Endpoint,
		Keys: webpush.Keys{
			P256dh: msg.P256dh,
			Auth:   msg.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      strings.TrimPrefix(t.vapid.Subject, "mailto:"),
		VAPIDPublicKey:  t.vapid.PublicKey,
		VAPIDPrivateKey: t.vapid.PrivateKey,
		TTL:             msg.TTL,
		Urgency:         msg.Urgency,
	})
	if err != nil {
		return 0, fmt.Errorf("web push send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusGone {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.logger.Debug("push service rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
	}

	return resp.StatusCode, nil
}
