package bus

import "time"

// Event kinds published by the daemon.
const (
	KindStatusChanged    = "daemon.status_changed"
	KindDialogsRefreshed = "sync.dialogs_refreshed"
	KindMessagesCached   = "sync.messages_cached"
	KindTopicAmbiguous   = "sync.topic_ambiguous"
	KindTopicsResolved   = "sync.topics_resolved"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event of kind with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
