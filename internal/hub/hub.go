// Package hub streams cycle events to HTTP clients as server-sent events.
//
// Every event gets a sequence number sent as the SSE id. The hub keeps the
// most recent events so a client reconnecting with Last-Event-ID receives
// what it missed, as long as it is still buffered.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// KeepAlive is the interval between keep-alive comments
	KeepAlive = 30 * time.Second
	// HistorySize is how many events are kept for replay
	HistorySize = 64
)

type frame struct {
	id   uint64
	data []byte
}

type message struct {
	name    string
	payload any
}

// client is one connected event stream
type client struct {
	id     string
	after  uint64 // last event id the client has seen
	events chan []byte
}

// Hub fans events out to SSE clients
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	seq        uint64
	history    []frame
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
	logger     *zap.Logger
}

// New creates a new Hub. A nil logger disables logging.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.send(m)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.events)
	}
}

// add registers c and queues the buffered events it has not seen
func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	replayed := 0
	if c.after > 0 {
		for _, f := range h.history {
			if f.id <= c.after {
				continue
			}
			select {
			case c.events <- f.data:
				replayed++
			default:
			}
		}
	}
	h.mu.Unlock()

	h.logger.Debug("SSE client connected",
		zap.String("client", c.id),
		zap.Int("total", n),
		zap.Int("replayed", replayed),
	)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("SSE client disconnected", zap.String("client", c.id), zap.Int("total", n))
}

func (h *Hub) send(m message) {
	data, err := json.Marshal(m.payload)
	if err != nil {
		h.logger.Warn("failed to marshal event", zap.String("event", m.name), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	f := frame{
		id:   h.seq,
		data: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, m.name, data)),
	}
	h.history = append(h.history, f)
	if len(h.history) > HistorySize {
		h.history = h.history[len(h.history)-HistorySize:]
	}

	for c := range h.clients {
		select {
		case c.events <- f.data:
		default:
			h.logger.Debug("SSE client is slow, skipping event", zap.String("client", c.id), zap.Uint64("id", f.id))
		}
	}
}

// Broadcast queues a named event for every connected client. It never
// blocks; when the queue is full the event is dropped.
func (h *Hub) Broadcast(name string, payload any) {
	select {
	case h.broadcast <- message{name: name, payload: payload}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", zap.String("event", name))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LastEventID returns the id of the most recent event sent, 0 if none
func (h *Hub) LastEventID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ServeHTTP streams events to one client until it disconnects or the hub
// stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		events: make(chan []byte, HistorySize+64),
	}
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		after, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			http.Error(w, "invalid Last-Event-ID", http.StatusBadRequest)
			return
		}
		c.after = after
	}

	select {
	case h.register <- c:
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
