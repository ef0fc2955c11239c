package push

import (
	"math"
	"time"

	"github.com/alveusgg/sanctuary/internal/db"
)

// MaxTTL is the longest time a push service is asked to hold a message
const MaxTTL = 4 * 7 * 24 * time.Hour

// ProcessingStatusFor decides the final status of a delivery attempt. A
// delivered or gone push is done, as is a failed push on its last attempt.
// Everything else stays pending for the retry worker.
func ProcessingStatusFor(delivered, gone bool, attempt, maxAttempts int) string {
	if delivered || gone || (attempt > 0 && attempt >= maxAttempts) {
		return db.ProcessingDone
	}
	return db.ProcessingPending
}

// TTLSeconds is the remaining lifetime of a push in whole seconds, clamped to
// [0, MaxTTL].
func TTLSeconds(now, expiresAt time.Time) int {
	secs := math.Round(expiresAt.Sub(now).Seconds())
	return int(math.Min(MaxTTL.Seconds(), math.Max(0, secs)))
}
