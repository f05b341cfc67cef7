// Package realtime fans out board events to connected WebSocket clients.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/askboard/models"
)

// Event names sent to subscribers.
const (
	EventNewPost      = "newPost"
	EventNewReply     = "newReply"
	EventPostUpvoted  = "postUpvoted"
	EventPostAnswered = "postAnswered"
)

// Broadcaster sends a named event to every connected subscriber. Delivery is
// best effort: no acknowledgement, retry or persistence.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Message is the frame written to subscribers.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewReplyPayload accompanies EventNewReply.
type NewReplyPayload struct {
	PostID string       `json:"postId"`
	Reply  models.Reply `json:"reply"`
}

// UpvotedPayload accompanies EventPostUpvoted.
type UpvotedPayload struct {
	PostID string `json:"postId"`
	Votes  int    `json:"votes"`
}

// AnsweredPayload accompanies EventPostAnswered.
type AnsweredPayload struct {
	PostID  string `json:"postId"`
	ReplyID string `json:"replyId,omitempty"`
}

// Encode builds the wire frame for an event.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: data})
}

// Hub tracks connected clients and delivers frames to them.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHub returns an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[*Client]struct{}),
	}
}

// Broadcast encodes the event once and queues it for every client.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		h.log.Error("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(frame)
}

// deliver queues an encoded frame for every client. A client whose queue is
// full misses the frame.
func (h *Hub) deliver(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.log.Debug("client queue full, dropping event", zap.String("client", c.id))
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
