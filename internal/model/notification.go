package model

import "time"

// Notification represents a transient alert surfaced to the user about a
// send-time filing event. At most one is produced per send event.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// EventID correlates this notification with the send event that
	// produced it.
	EventID string `json:"event_id"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
