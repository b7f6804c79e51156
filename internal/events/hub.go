// Package events fans out engine notifications to stream subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	TypeRunStarted  = "run_started"
	TypeRunFinished = "run_finished"
	TypeUnit        = "unit"
	TypeBounces     = "bounces_recorded"
)

type Event struct {
	Type  string          `json:"type"`
	At    time.Time       `json:"at"`
	RunID string          `json:"run_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub broadcasts encoded events. Slow subscribers miss events rather than
// block publishers.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{}), now: time.Now}
}

func (h *Hub) Subscribe() chan string {
	ch := make(chan string, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; !ok {
		return
	}
	delete(h.clients, ch)
	close(ch)
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish encodes an event of typ carrying data and sends it to every
// subscriber. A nil hub drops the event.
func (h *Hub) Publish(typ, runID string, data any) {
	if h == nil {
		return
	}
	e := Event{Type: typ, At: h.now().UTC(), RunID: runID}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return
		}
		e.Data = b
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	h.broadcast(string(b))
}

func (h *Hub) broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// drop if slow
		}
	}
}
