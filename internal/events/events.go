package events

import (
	"encoding/json"
	"time"
)

// Kind is the enumerated tag of an event.
type Kind string

// The closed set of event kinds.
const (
	// Connection lifecycle
	KindConnectionEstablished Kind = "connection_established"
	KindHeartbeatAck          Kind = "heartbeat_ack"

	// Task lifecycle
	KindTaskStatus   Kind = "task_status"
	KindTaskProgress Kind = "task_progress"

	// Generation streaming
	KindStreamChunk Kind = "generation_stream_chunk"

	// Document processing
	KindDocumentStatus Kind = "document_status"

	// Cost tracking
	KindCostUpdate    Kind = "cost_update"
	KindBudgetWarning Kind = "budget_warning"

	// User-facing notifications
	KindNotification Kind = "user_notification"
)

// allKinds is the authoritative list used for parsing and validation.
var allKinds = map[Kind]struct{}{
	KindConnectionEstablished: {},
	KindHeartbeatAck:          {},
	KindTaskStatus:            {},
	KindTaskProgress:          {},
	KindStreamChunk:           {},
	KindDocumentStatus:        {},
	KindCostUpdate:            {},
	KindBudgetWarning:         {},
	KindNotification:          {},
}

// IsValid reports whether k is a known event kind.
func (k Kind) IsValid() bool {
	_, ok := allKinds[k]
	return ok
}

// AlwaysBroadcast reports whether events of this kind are delivered to every
// connected observer regardless of interest set. Connection lifecycle and
// user notifications must reach observers that never subscribed to anything.
func (k Kind) AlwaysBroadcast() bool {
	switch k {
	case KindConnectionEstablished, KindHeartbeatAck, KindNotification:
		return true
	default:
		return false
	}
}

// ParseKind converts a wire string into a Kind. Unknown strings return false
// so callers can ignore them rather than erroring.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, k.IsValid()
}

// Event is an immutable, typed notification of a state change. Once
// constructed and handed to a Sink it is never mutated; the payload is kept
// as pre-marshalled JSON so concurrent deliveries share one read-only copy.
type Event struct {
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// New constructs an Event of the given kind, marshalling the payload once at
// construction time.
func New(kind Kind, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Kind:      kind,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Sink accepts events for distribution. Publish must never block the caller
// beyond a bounded, short duration and must never return delivery errors for
// individual observers.
type Sink interface {
	Publish(event *Event)
}

// NopSink discards all events. Useful for tasks run without observers and in
// tests that do not assert on event flow.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(*Event) {}
