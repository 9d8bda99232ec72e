package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/office-diffusion/internal/engine"
	"github.com/talgya/office-diffusion/internal/metrics"
)

const (
	maxStreamConns = 8
	sendBuffer     = 32
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
)

// streamMessage is one websocket text frame.
type streamMessage struct {
	Type    string              `json:"type"` // "hello" or "tick"
	State   engine.State        `json:"state"`
	Summary *engine.TickSummary `json:"summary,omitempty"`
	Frame   *metrics.Frame      `json:"frame,omitempty"`
}

// Hub fans encoded messages out to stream subscribers. Slow subscribers drop
// messages rather than stall the simulation.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
	conns  atomic.Int32
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan []byte)}
}

// Subscribe registers a new subscriber and returns its ID and channel.
func (h *Hub) Subscribe() (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan []byte, sendBuffer)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast encodes v once and offers it to every subscriber.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("stream encode", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- data:
		default:
			slog.Debug("stream subscriber lagging, message dropped", "sub_id", id)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and forwards every tick until either
// side closes. The client first receives a hello carrying the current state
// and the latest frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if n := s.hub.conns.Add(1); n > maxStreamConns {
		s.hub.conns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.conns.Add(-1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "remote", r.RemoteAddr)

	hello := streamMessage{Type: "hello", State: s.Sim.State(), Frame: s.Sim.Recorder.LastFrame()}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	// Reads only serve to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}
