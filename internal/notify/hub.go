package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// EventNewMessage is broadcast when an inbound SMS is logged.
const EventNewMessage = "new_message"

// Frame is the wire shape of every server-to-client event.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Sink is the outbound half of a tracked connection. *Connection satisfies
// it; tests use in-memory sinks.
type Sink interface {
	ID() string
	Send(payload []byte) error
}

// Hub maps live connections to per-user notification channels and fans
// lifecycle events out to them. A connection holds at most one channel;
// re-registering moves it. Events published to an offline user are dropped,
// not queued.
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]Sink            // connection id -> sink
	channels    map[string]map[string]Sink // user id -> connection id -> sink
	connChannel map[string]string          // connection id -> user id

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns:       make(map[string]Sink),
		channels:    make(map[string]map[string]Sink),
		connChannel: make(map[string]string),
		log:         log,
	}
}

// Attach starts tracking a connection. It receives broadcasts immediately;
// user-targeted events only after Register.
func (h *Hub) Attach(s Sink) {
	h.mu.Lock()
	h.conns[s.ID()] = s
	h.mu.Unlock()
}

// Register binds the connection to userID's channel. A previous binding for
// the same connection is dropped first.
func (h *Hub) Register(s Sink, userID string) {
	if userID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, tracked := h.conns[s.ID()]; !tracked {
		return
	}
	h.unbindLocked(s.ID())

	room := h.channels[userID]
	if room == nil {
		room = make(map[string]Sink)
		h.channels[userID] = room
	}
	room[s.ID()] = s
	h.connChannel[s.ID()] = userID
}

// Detach removes the connection and all its channel associations. Safe to
// call for connections that never attached or registered.
func (h *Hub) Detach(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(s.ID())
	delete(h.conns, s.ID())
}

// PublishToUser delivers the event to every connection on userID's channel.
// No connection registered means the event is silently dropped.
func (h *Hub) PublishToUser(userID, event string, payload any) {
	frame, err := h.encode(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.channels[userID] {
		if err := s.Send(frame); err != nil {
			h.log.Debug("event dropped", "event", event, "conn", s.ID(), "err", err)
		}
	}
}

// Broadcast delivers the event to every tracked connection.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := h.encode(event, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.conns {
		if err := s.Send(frame); err != nil {
			h.log.Debug("event dropped", "event", event, "conn", s.ID(), "err", err)
		}
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, error) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.log.Error("event marshal failed", "event", event, "err", err)
		return nil, err
	}
	return frame, nil
}

func (h *Hub) unbindLocked(connID string) {
	userID, ok := h.connChannel[connID]
	if !ok {
		return
	}
	delete(h.connChannel, connID)
	room := h.channels[userID]
	if room == nil {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.channels, userID)
	}
}
