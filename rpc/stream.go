package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"marketledger/core/events"
	"marketledger/core/types"
)

const (
	wsWriteTimeout     = 10 * time.Second
	streamBufferEvents = 64
)

// StreamEvent is the frame pushed to websocket subscribers.
type StreamEvent struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// EventHub fans committed events out to live websocket subscribers. A slow
// subscriber loses events rather than blocking the ledger.
type EventHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan StreamEvent
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[uint64]chan StreamEvent)}
}

// Emit implements events.Emitter.
func (h *EventHub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	frame := StreamEvent{Type: evt.EventType()}
	if pe, ok := evt.(interface{ Event() *types.Event }); ok && pe.Event() != nil {
		frame.Attributes = pe.Event().Attributes
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (h *EventHub) subscribe() (<-chan StreamEvent, func()) {
	ch := make(chan StreamEvent, streamBufferEvents)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Subscribers reports the number of connected streams.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleEventStream upgrades to a websocket and forwards events, optionally
// restricted to one type with ?type=.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	if !s.limiter.allow(clientSource(r)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	// The server's request timeouts must not cut the stream.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// Reads are only needed to observe the peer closing.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter string) error {
	updates, cancel := s.hub.subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-updates:
			if filter != "" && frame.Type != filter {
				continue
			}
			if err := writeStreamEvent(ctx, conn, frame); err != nil {
				return err
			}
		}
	}
}

func writeStreamEvent(ctx context.Context, conn *websocket.Conn, frame StreamEvent) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
