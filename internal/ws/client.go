package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grantpilot/api/internal/events"
)

const (
	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may go without a pong before the
	// read pump gives up.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound control messages.
	maxMessageSize = 4096
)

// controlMessage is the inbound wire format observers use to manage their
// subscriptions and liveness.
type controlMessage struct {
	Type  string   `json:"type"`
	Kinds []string `json:"kinds,omitempty"`
}

// Client ties one hub session to one gorilla websocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *Session
	logger  *slog.Logger
}

// NewClient registers the connection as a hub observer. observerID may be
// empty for a fresh identity, or a previous session's ID to reconnect under
// it.
func NewClient(hub *Hub, conn *websocket.Conn, observerID string, logger *slog.Logger) (*Client, error) {
	session, err := hub.Connect(observerID)
	if err != nil {
		return nil, err
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		logger:  logger.With("observer_id", session.ObserverID),
	}, nil
}

// ObserverID returns the hub-assigned observer identifier.
func (c *Client) ObserverID() string {
	return c.session.ObserverID
}

// Run serves the connection until either side disconnects. It starts the
// write pump and runs the read pump on the calling goroutine; on return the
// observer is deregistered and the socket closed.
func (c *Client) Run() {
	defer func() {
		_ = c.hub.Disconnect(c.session.ObserverID)
		_ = c.conn.Close()
	}()

	go c.writePump()
	c.readPump()
}

// readPump consumes control messages until the connection drops.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.handleControl(raw)
	}
}

// handleControl dispatches one inbound message. Malformed or unknown
// messages produce an error notification instead of dropping the connection.
func (c *Client) handleControl(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.notifyError("Invalid message", "messages must be JSON with a type field")
		return
	}

	switch msg.Type {
	case "heartbeat", "ping":
		if err := c.hub.Heartbeat(c.session.ObserverID); err != nil {
			c.logger.Warn("heartbeat failed", "error", err)
		}
	case "subscribe":
		kinds, ok := parseKinds(msg.Kinds)
		if !ok {
			c.notifyError("Invalid subscription", "subscribe requires a kinds list")
			return
		}
		if err := c.hub.Subscribe(c.session.ObserverID, kinds); err != nil {
			c.logger.Warn("subscribe failed", "error", err)
		}
	case "unsubscribe":
		kinds, ok := parseKinds(msg.Kinds)
		if !ok {
			c.notifyError("Invalid subscription", "unsubscribe requires a kinds list")
			return
		}
		if err := c.hub.Unsubscribe(c.session.ObserverID, kinds); err != nil {
			c.logger.Warn("unsubscribe failed", "error", err)
		}
	default:
		c.notifyError("Unknown message type", "unsupported type: "+msg.Type)
	}
}

// parseKinds converts the wire strings to event kinds. Unknown names are
// skipped rather than rejected; an empty list is the only protocol error.
func parseKinds(names []string) ([]events.Kind, bool) {
	if len(names) == 0 {
		return nil, false
	}
	kinds := make([]events.Kind, 0, len(names))
	for _, name := range names {
		if kind, ok := events.ParseKind(name); ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds, true
}

// notifyError queues a user_notification describing a client protocol error.
func (c *Client) notifyError(title, message string) {
	ev, err := (events.NotificationPayload{
		Level:   events.NotificationLevelError,
		Title:   title,
		Message: message,
	}).Event()
	if err != nil {
		return
	}
	_ = c.hub.SendTo(c.session.ObserverID, ev)
}

// writePump drains the session's event stream onto the wire and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.session.Events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("websocket write failed", "error", err)
				return
			}
		case <-c.session.Done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
