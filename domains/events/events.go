// Package events defines the closed set of typed live events the
// dispatcher fans out to subscribed connections. Everything a client
// can receive flows through one of these kinds; nothing is broadcast
// ad hoc.
package events

import "time"

type Kind string

const (
	KindNewMessage    Kind = "new_message"
	KindSessionStatus Kind = "session_status_update"
	KindNewContact    Kind = "new_contact"
	// KindHeartbeat is the only low-priority kind: a full client
	// queue sheds heartbeats before ever dropping a message event.
	KindHeartbeat Kind = "heartbeat"
)

type Event struct {
	Kind           Kind      `json:"code"`
	OrganizationID string    `json:"organization_id"`
	SessionName    string    `json:"session_name"`
	Payload        any       `json:"result,omitempty"`
	At             time.Time `json:"at"`
}

// LowPriority reports whether the event may be shed on queue
// overflow before any message event.
func (e Event) LowPriority() bool {
	return e.Kind == KindHeartbeat
}
