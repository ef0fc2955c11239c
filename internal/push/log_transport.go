package push

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// LogTransport logs messages instead of sending them. It stands in for the
// Web Push transport in development when no VAPID keys are configured.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, msg Message) (int, error) {
	t.logger.Info("push sent",
		zap.String("endpoint", msg.Endpoint),
		zap.Int("ttl", msg.TTL),
		zap.String("urgency", string(msg.Urgency)),
		zap.ByteString("payload", msg.Payload),
	)
	return http.StatusCreated, nil
}
