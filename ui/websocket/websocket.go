// Package websocket exposes the live event stream. Each connection
// authenticates as one organization, subscribes to session rooms, and
// receives events through its own bounded queue so a slow consumer
// can never stall the engine.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domainEvents "github.com/kolibrisuite/chatsync/domains/events"
	"github.com/kolibrisuite/chatsync/engine"
)

type connection struct {
	id             string
	organizationID string
	ws             *websocket.Conn
	queue          *outQueue
	done           chan struct{}
	closeOnce      sync.Once

	// writeMu serializes socket writes between the writer pump and
	// command acks.
	writeMu sync.Mutex
}

func (c *connection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// clientCommand is what a connected client may send: room membership
// changes only. Everything else arrives over REST.
type clientCommand struct {
	Action      string `json:"action"`
	SessionName string `json:"session_name"`
}

type ack struct {
	Code        string `json:"code"`
	Message     string `json:"message,omitempty"`
	SessionName string `json:"session_name,omitempty"`
}

type Hub struct {
	mu         sync.RWMutex
	conns      map[string]*connection
	dispatcher *engine.Dispatcher

	queueSize         int
	heartbeatInterval time.Duration
}

func NewHub(queueSize int, heartbeatInterval time.Duration) *Hub {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Hub{
		conns:             make(map[string]*connection),
		queueSize:         queueSize,
		heartbeatInterval: heartbeatInterval,
	}
}

// SetDispatcher breaks the construction cycle: the dispatcher needs
// the hub as its sink, the hub needs the dispatcher for room
// membership.
func (h *Hub) SetDispatcher(d *engine.Dispatcher) {
	h.dispatcher = d
}

// Deliver implements engine.Sink. It only enqueues; the connection's
// writer pump does the actual network write.
func (h *Hub) Deliver(connectionID string, evt domainEvents.Event) {
	h.mu.RLock()
	conn, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !conn.queue.push(evt) {
		logrus.Warnf("[WS] Queue full for connection %s, shed one event", connectionID)
	}
}

// Run emits heartbeats to every connection until ctx is cancelled.
// Heartbeats are shed first on overflow, so they never crowd out
// message events.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			h.mu.RLock()
			for _, conn := range h.conns {
				conn.queue.push(domainEvents.Event{
					Kind:           domainEvents.KindHeartbeat,
					OrganizationID: conn.organizationID,
					At:             now,
				})
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
	logrus.Debugf("[WS] Connection %s registered for org %s", conn.id, conn.organizationID)
}

// closeConnection tears down exactly once: room memberships, registry
// entry and the socket itself.
func (h *Hub) closeConnection(conn *connection) {
	conn.closeOnce.Do(func() {
		close(conn.done)

		h.mu.Lock()
		delete(h.conns, conn.id)
		h.mu.Unlock()

		if h.dispatcher != nil {
			h.dispatcher.OnConnectionClosed(conn.id)
		}
		_ = conn.ws.Close()

		logrus.Debugf("[WS] Connection %s closed (%d events shed over lifetime)", conn.id, conn.queue.droppedCount())
	})
}

func (h *Hub) writerPump(conn *connection) {
	for {
		select {
		case <-conn.done:
			return
		case <-conn.queue.notify:
			for _, evt := range conn.queue.drain() {
				if err := conn.writeJSON(evt); err != nil {
					logrus.Debugf("[WS] Write error on %s: %v", conn.id, err)
					h.closeConnection(conn)
					return
				}
			}
		}
	}
}

func (h *Hub) handleCommand(conn *connection, raw []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		_ = conn.writeJSON(ack{Code: "ERROR", Message: "malformed command"})
		return
	}

	switch cmd.Action {
	case "subscribe_session":
		if err := h.dispatcher.Subscribe(conn.id, conn.organizationID, cmd.SessionName); err != nil {
			_ = conn.writeJSON(ack{Code: "SUBSCRIBE_REJECTED", Message: err.Error(), SessionName: cmd.SessionName})
			return
		}
		_ = conn.writeJSON(ack{Code: "SUBSCRIBED", SessionName: cmd.SessionName})

	case "unsubscribe_session":
		h.dispatcher.Unsubscribe(conn.id, conn.organizationID, cmd.SessionName)
		_ = conn.writeJSON(ack{Code: "UNSUBSCRIBED", SessionName: cmd.SessionName})

	default:
		_ = conn.writeJSON(ack{Code: "ERROR", Message: "unknown action: " + cmd.Action})
	}
}

// RegisterRoutes mounts the upgrade endpoint. The organization id
// comes from the handshake query; a connection without one is
// rejected before the upgrade.
func (h *Hub) RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}
		organizationID := c.Query("organization_id")
		if organizationID == "" {
			organizationID = c.Get("X-Organization-ID")
		}
		if organizationID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "organization_id is required")
		}
		c.Locals("organization_id", organizationID)
		return c.Next()
	})

	app.Get("/ws", websocket.New(func(ws *websocket.Conn) {
		organizationID, _ := ws.Locals("organization_id").(string)

		conn := &connection{
			id:             uuid.NewString(),
			organizationID: organizationID,
			ws:             ws,
			queue:          newOutQueue(h.queueSize),
			done:           make(chan struct{}),
		}

		h.register(conn)
		defer h.closeConnection(conn)

		go h.writerPump(conn)

		_ = conn.writeJSON(ack{Code: "CONNECTED", Message: conn.id})

		for {
			messageType, raw, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error on %s: %v", conn.id, err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			h.handleCommand(conn, raw)
		}
	}))
}

// ConnectionCount reports live connections on this node.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
