package push

import webpush "github.com/SherClockHolmes/webpush-go"

// Notification urgencies as stored on a notification
const (
	UrgencyVeryLow = "VERY_LOW"
	UrgencyLow     = "LOW"
	UrgencyNormal  = "NORMAL"
	UrgencyHigh    = "HIGH"
)

var webPushUrgencies = map[string]webpush.Urgency{
	UrgencyVeryLow: webpush.UrgencyVeryLow,
	UrgencyLow:     webpush.UrgencyLow,
	UrgencyNormal:  webpush.UrgencyNormal,
	UrgencyHigh:    webpush.UrgencyHigh,
}

// ValidUrgency reports whether u is a known urgency
func ValidUrgency(u string) bool {
	_, ok := webPushUrgencies[u]
	return ok
}

// WebPushUrgency maps an urgency to its Urgency header value. Unknown values
// map to normal.
func WebPushUrgency(u string) webpush.Urgency {
	if v, ok := webPushUrgencies[u]; ok {
		return v
	}
	return webpush.UrgencyNormal
}
