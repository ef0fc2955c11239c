package push

import "encoding/json"

// Payload is the JSON document the service worker turns into a notification
type Payload struct {
	Title   string         `json:"title"`
	Options PayloadOptions `json:"options"`
}

type PayloadOptions struct {
	Body               string      `json:"body"`
	Renotify           bool        `json:"renotify"`
	RequireInteraction bool        `json:"requireInteraction"`
	Silent             bool        `json:"silent"`
	Tag                string      `json:"tag"`
	Data               PayloadData `json:"data"`
	Image              string      `json:"image,omitempty"`
	Dir                string      `json:"dir"`
	Lang               string      `json:"lang"`
	Icon               string      `json:"icon"`
	Badge              string      `json:"badge"`
}

// PayloadData lets the client correlate a click with the delivery record
type PayloadData struct {
	NotificationID string `json:"notificationId"`
	SubscriptionID string `json:"subscriptionId"`
}

// Presentation holds the site-wide defaults applied to every payload
type Presentation struct {
	DefaultTitle string
	DefaultTag   string
	IconURL      string
	BadgeURL     string
	Lang         string
	TextDir      string
}

// BuildPayload renders the payload for req
func BuildPayload(req DeliveryRequest, p Presentation) ([]byte, error) {
	payload := Payload{
		Title: valueOr(req.Title, p.DefaultTitle),
		Options: PayloadOptions{
			Body:               req.Message,
			Renotify:           true,
			RequireInteraction: true,
			Silent:             false,
			Tag:                valueOr(req.Tag, p.DefaultTag),
			Data: PayloadData{
				NotificationID: req.NotificationID.String(),
				SubscriptionID: req.SubscriptionID.String(),
			},
			Image: valueOr(req.ImageURL, ""),
			Dir:   p.TextDir,
			Lang:  p.Lang,
			Icon:  p.IconURL,
			Badge: p.BadgeURL,
		},
	}
	return json.Marshal(payload)
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
