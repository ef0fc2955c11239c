package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup by key matches no row
var ErrNotFound = errors.New("not found")

// CalendarEvent represents a scheduled event shown on the site calendar
type CalendarEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description *string   `json:"description,omitempty"`
	Link        string    `json:"link"`
	StartAt     time.Time `json:"startAt"`
	HasTime     bool      `json:"hasTime"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CalendarEventFilter selects events with StartAt in [Start, End).
// A zero End means one month after Start. OpenEnded drops the upper bound.
type CalendarEventFilter struct {
	Start     time.Time
	End       time.Time
	OpenEnded bool
	HasTime   *bool
}

// Notification is a message broadcast to push subscribers
type Notification struct {
	ID         uuid.UUID  `json:"id"`
	Message    string     `json:"message"`
	Title      *string    `json:"title,omitempty"`
	Tag        *string    `json:"tag,omitempty"`
	ImageURL   *string    `json:"imageUrl,omitempty"`
	LinkURL    *string    `json:"linkUrl,omitempty"`
	Urgency    string     `json:"urgency"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	CanceledAt *time.Time `json:"canceledAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Active reports whether the notification may still be delivered at now
func (n *Notification) Active(now time.Time) bool {
	return n.CanceledAt == nil && n.ExpiresAt.After(now)
}

// PushSubscription is a browser push endpoint registered by a visitor
type PushSubscription struct {
	ID        uuid.UUID  `json:"id"`
	Endpoint  string     `json:"endpoint"`
	P256dh    *string    `json:"p256dh,omitempty"`
	Auth      *string    `json:"auth,omitempty"`
	UserID    *string    `json:"userId,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NotificationPush tracks delivery of one notification to one subscription
type NotificationPush struct {
	NotificationID   uuid.UUID  `json:"notificationId"`
	SubscriptionID   uuid.UUID  `json:"subscriptionId"`
	ProcessingStatus string     `json:"processingStatus"`
	Attempts         int        `json:"attempts"`
	DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
	FailedAt         *time.Time `json:"failedAt,omitempty"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	UserID           *string    `json:"userId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Processing status constants
const (
	ProcessingInProgress = "IN_PROGRESS"
	ProcessingPending    = "PENDING"
	ProcessingDone       = "DONE"
)

// TwitchChannel holds the broadcaster credentials used for schedule sync
type TwitchChannel struct {
	Username      string    `json:"username"`
	BroadcasterID string    `json:"broadcasterId"`
	AccessToken   *string   `json:"-"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
