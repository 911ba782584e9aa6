package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	clientBufDepth = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served on the LAN; no origin restriction.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts event payloads to connected dashboard websockets.
// A slow client gets its buffer dropped, never the audio path stalled.
type Hub struct {
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    *Payload
}

type client struct {
	conn *websocket.Conn
	send chan Payload
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		logger:  observability.ComponentLogger("dashboard"),
		clients: make(map[*client]struct{}),
	}
}

// Notify implements Sink: queue the payload for every client, dropping
// it for clients whose buffer is full.
func (h *Hub) Notify(p Payload) {
	h.mu.Lock()
	// Level samples are transient; replaying one to a fresh client
	// instead of the last lifecycle event would be useless.
	if p.Event != AudioLevel {
		h.last = &p
	}
	for c := range h.clients {
		select {
		case c.send <- p:
		default:
		}
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Payload, clientBufDepth)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- *h.last
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Str("remote", conn.RemoteAddr().String()).Int("clients", n).Msg("Dashboard client connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for p := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(p); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump discards inbound messages; its job is noticing disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	h.logger.Debug().Int("clients", n).Msg("Dashboard client disconnected")
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink() *LogSink {
	return &LogSink{logger: observability.ComponentLogger("events")}
}

// Notify implements Sink.
func (s *LogSink) Notify(p Payload) {
	ev := s.logger.Info().Str("event", string(p.Event))
	if p.Detail != "" {
		ev = ev.Str("detail", p.Detail)
	}
	ev.Msg("Event")
}
