package domain

import "time"

// Event types for WebSocket notifications
const (
	EventAltAlert = "alt_alert"
	EventHello    = "hello"
)

// Event represents a real-time event for WebSocket broadcast
type Event struct {
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// AltAlertEvent is sent to staff when an account joins from a shared address
type AltAlertEvent struct {
	Alert   Alert  `json:"alert"`
	Message string `json:"message"`
}

// NewAltAlertEvent wraps an alert for broadcast
func NewAltAlertEvent(a Alert) Event {
	return Event{
		Type:      EventAltAlert,
		Timestamp: a.Timestamp,
		Data: AltAlertEvent{
			Alert:   a,
			Message: a.Message(),
		},
	}
}
