package ws

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grantpilot/api/internal/domain"
	"github.com/grantpilot/api/internal/events"
	"github.com/grantpilot/api/internal/platform/metrics"
)

// DefaultSendBuffer is the per-observer outbound queue depth used when the
// configuration does not override it.
const DefaultSendBuffer = 32

// ErrHubClosed is returned by Connect after the hub has shut down.
var ErrHubClosed = errors.New("hub is closed")

// ErrNilLogger is returned when a hub is constructed without a logger.
var ErrNilLogger = errors.New("logger cannot be nil")

// ErrNilHub is returned when a client or handler is constructed without a hub.
var ErrNilHub = errors.New("hub cannot be nil")

// ErrObserverExists is returned by Connect when the requested observer ID is
// already registered.
var ErrObserverExists = errors.New("observer ID already connected")

// Session is an observer's view of its hub registration. Events delivers the
// observer's stream; Done is closed when the hub disconnects the observer.
// The Events channel is never closed, so a receiver must select on Done.
type Session struct {
	ObserverID string
	Events     <-chan *events.Event
	Done       <-chan struct{}
}

// observer is the hub-side registration record. kinds is the interest set:
// the event kinds this observer has asked to receive.
type observer struct {
	id       string
	ch       chan *events.Event
	done     chan struct{}
	kinds    map[events.Kind]struct{}
	lastSeen time.Time
}

// Hub is the subscription registry and event distributor. It implements
// events.Sink. A single mutex guards the observer table; every operation
// under it is non-blocking, so publishers are never stalled by a slow
// receiver.
type Hub struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sendBuffer int

	mu        sync.Mutex
	observers map[string]*observer
	closed    bool
}

// NewHub creates a hub. sendBuffer <= 0 selects DefaultSendBuffer. The
// metrics handle may be nil.
func NewHub(logger *slog.Logger, m *metrics.Metrics, sendBuffer int) (*Hub, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		logger:     logger.With("component", "ws_hub"),
		metrics:    m,
		sendBuffer: sendBuffer,
		observers:  make(map[string]*observer),
	}, nil
}

// Connect registers a new observer and returns its session. An empty
// observerID gets a generated one. The first event on the session's channel
// is the connection_established confirmation.
func (h *Hub) Connect(observerID string) (*Session, error) {
	if observerID == "" {
		observerID = uuid.NewString()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if _, exists := h.observers[observerID]; exists {
		h.mu.Unlock()
		return nil, ErrObserverExists
	}

	obs := &observer{
		id:       observerID,
		ch:       make(chan *events.Event, h.sendBuffer),
		done:     make(chan struct{}),
		kinds:    make(map[events.Kind]struct{}),
		lastSeen: time.Now(),
	}
	h.observers[observerID] = obs
	h.mu.Unlock()

	h.metrics.ObserverConnected()
	h.logger.Info("observer connected", "observer_id", observerID)

	if ev, err := (events.ConnectionPayload{ObserverID: observerID}).Event(); err == nil {
		obs.ch <- ev
	}

	return &Session{
		ObserverID: observerID,
		Events:     obs.ch,
		Done:       obs.done,
	}, nil
}

// Disconnect removes an observer and closes its Done channel. Its Events
// channel is left open; any reader drains and then observes Done.
func (h *Hub) Disconnect(observerID string) error {
	h.mu.Lock()
	obs, ok := h.observers[observerID]
	if ok {
		delete(h.observers, observerID)
	}
	h.mu.Unlock()

	if !ok {
		return domain.ErrObserverNotFound
	}

	close(obs.done)
	h.metrics.ObserverDisconnected()
	h.logger.Info("observer disconnected", "observer_id", observerID)
	return nil
}

// Subscribe adds event kinds to the observer's interest set. Unknown kinds
// are silently skipped; subscribing twice to the same kind is a no-op.
func (h *Hub) Subscribe(observerID string, kinds []events.Kind) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs, ok := h.observers[observerID]
	if !ok {
		return domain.ErrObserverNotFound
	}
	for _, kind := range kinds {
		if !kind.IsValid() {
			continue
		}
		obs.kinds[kind] = struct{}{}
	}
	obs.lastSeen = time.Now()
	return nil
}

// Unsubscribe removes event kinds from the observer's interest set. Kinds not
// in the set, unknown kinds included, are ignored.
func (h *Hub) Unsubscribe(observerID string, kinds []events.Kind) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs, ok := h.observers[observerID]
	if !ok {
		return domain.ErrObserverNotFound
	}
	for _, kind := range kinds {
		delete(obs.kinds, kind)
	}
	return nil
}

// Heartbeat refreshes the observer's liveness stamp and queues a
// heartbeat_ack on its stream.
func (h *Hub) Heartbeat(observerID string) error {
	h.mu.Lock()
	obs, ok := h.observers[observerID]
	if ok {
		obs.lastSeen = time.Now()
	}
	h.mu.Unlock()

	if !ok {
		return domain.ErrObserverNotFound
	}

	ev, err := (events.HeartbeatPayload{Status: "alive"}).Event()
	if err != nil {
		return err
	}
	return h.SendTo(observerID, ev)
}

// SendTo delivers one event to a single observer, bypassing interest
// filtering. A full buffer drops the event rather than evicting; directed
// sends are best-effort.
func (h *Hub) SendTo(observerID string, event *events.Event) error {
	h.mu.Lock()
	obs, ok := h.observers[observerID]
	h.mu.Unlock()

	if !ok {
		return domain.ErrObserverNotFound
	}

	select {
	case obs.ch <- event:
	default:
		h.logger.Warn("dropping directed event, observer buffer full",
			"observer_id", observerID, "kind", event.Kind)
	}
	return nil
}

// Publish implements events.Sink: the event is delivered to every observer
// subscribed to its kind, or to all observers for broadcast kinds. An
// observer whose buffer is full is evicted; a stalled consumer must not
// backpressure task execution.
func (h *Hub) Publish(event *events.Event) {
	if event == nil {
		return
	}
	broadcast := event.Kind.AlwaysBroadcast()

	var evicted []*observer

	h.mu.Lock()
	for id, obs := range h.observers {
		if !broadcast {
			if _, interested := obs.kinds[event.Kind]; !interested {
				continue
			}
		}
		select {
		case obs.ch <- event:
		default:
			delete(h.observers, id)
			evicted = append(evicted, obs)
		}
	}
	h.mu.Unlock()

	h.metrics.EventPublished(string(event.Kind))

	for _, obs := range evicted {
		close(obs.done)
		h.metrics.ObserverDisconnected()
		h.metrics.ObserverEvicted()
		h.logger.Warn("evicted stalled observer", "observer_id", obs.id, "kind", event.Kind)
	}
}

// EvictStale disconnects observers that have been silent longer than maxIdle
// and returns their IDs.
func (h *Hub) EvictStale(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	var stale []*observer
	h.mu.Lock()
	for id, obs := range h.observers {
		if obs.lastSeen.Before(cutoff) {
			delete(h.observers, id)
			stale = append(stale, obs)
		}
	}
	h.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, obs := range stale {
		close(obs.done)
		h.metrics.ObserverDisconnected()
		h.metrics.ObserverEvicted()
		h.logger.Info("evicted stale observer", "observer_id", obs.id)
		ids = append(ids, obs.id)
	}
	return ids
}

// ObserverCount returns the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Subscriptions returns the observer's current interest set, sorted for
// stable output.
func (h *Hub) Subscriptions(observerID string) ([]events.Kind, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs, ok := h.observers[observerID]
	if !ok {
		return nil, domain.ErrObserverNotFound
	}
	kinds := make([]events.Kind, 0, len(obs.kinds))
	for kind := range obs.kinds {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds, nil
}

// Close disconnects every observer and refuses further connections.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	remaining := h.observers
	h.observers = make(map[string]*observer)
	h.mu.Unlock()

	for _, obs := range remaining {
		close(obs.done)
		h.metrics.ObserverDisconnected()
	}
	h.logger.Info("hub closed", "observers_disconnected", len(remaining))
}
