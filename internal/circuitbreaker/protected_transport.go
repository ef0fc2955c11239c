package circuitbreaker

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/push"
)

// ProtectedTransport wraps a push transport with a breaker. Transport errors
// and 5xx or 429 responses count as failures. Other statuses describe the
// subscription, not the push service, and count as successes.
type ProtectedTransport struct {
	transport push.Transport
	breaker   *CircuitBreaker
	logger    *zap.Logger
}

func NewProtectedTransport(transport push.Transport, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedTransport {
	return &ProtectedTransport{
		transport: transport,
		breaker:   breaker,
		logger:    logger,
	}
}

// Send returns ErrCircuitOpen without calling the transport while the breaker is open
func (p *ProtectedTransport) Send(ctx context.Context, msg push.Message) (int, error) {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected push, failing fast",
			zap.String("breaker", p.breaker.Name()),
			zap.String("state", p.breaker.State().String()),
		)
		return 0, fmt.Errorf("%w: %s unavailable", ErrCircuitOpen, p.breaker.Name())
	}

	status, err := p.transport.Send(ctx, msg)
	if err != nil || status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		p.breaker.RecordFailure()
		return status, err
	}

	p.breaker.RecordSuccess()
	return status, nil
}

func (p *ProtectedTransport) Breaker() *CircuitBreaker {
	return p.breaker
}
