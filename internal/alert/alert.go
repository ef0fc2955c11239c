// Package alert sends operator alerts through a Shoutrrr service URL.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"go.uber.org/zap"
)

// DefaultCooldown suppresses repeats of the same alert subject
const DefaultCooldown = time.Hour

// Sender abstracts message dispatch so alerts can be tested without
// hitting real services.
type Sender interface {
	Send(url, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// Alerter notifies operators about failures that need attention, such as a
// broadcaster whose Twitch token is gone.
type Alerter struct {
	url      string
	sender   Sender
	cooldown time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// New creates an alerter. An empty url disables sending; alerts are still logged.
func New(url string, sender Sender, logger *zap.Logger) *Alerter {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Alerter{
		url:      url,
		sender:   sender,
		cooldown: DefaultCooldown,
		logger:   logger,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify sends "subject: detail" unless the same subject was sent within the
// cooldown. Send failures are logged, never returned.
func (a *Alerter) Notify(subject, detail string) {
	a.logger.Warn("operator alert", zap.String("subject", subject), zap.String("detail", detail))

	if a.url == "" {
		return
	}

	a.mu.Lock()
	now := a.now()
	if last, ok := a.lastSent[subject]; ok && now.Sub(last) < a.cooldown {
		a.mu.Unlock()
		return
	}
	a.lastSent[subject] = now
	a.mu.Unlock()

	if err := a.sender.Send(a.url, fmt.Sprintf("[sanctuary] %s: %s", subject, detail)); err != nil {
		a.logger.Error("failed to send operator alert", zap.Error(err), zap.String("subject", subject))
	}
}
