package room

import "sync"

// Subscriber receives every event broadcast to a room. Implementations must
// be safe for concurrent Deliver calls; the websocket client serializes its
// own writes.
type Subscriber interface {
	Deliver(event string, payload any)
}

// Hub fans room events out to the sockets currently subscribed to each
// conversation.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Subscriber]struct{})}
}

// Subscribe attaches a subscriber to a conversation's room.
func (h *Hub) Subscribe(conversationID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[Subscriber]struct{})
		h.rooms[conversationID] = room
	}
	room[sub] = struct{}{}
}

// Unsubscribe detaches a subscriber; empty rooms are removed.
func (h *Hub) Unsubscribe(conversationID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

// Broadcast delivers an event to every subscriber of the conversation.
func (h *Hub) Broadcast(conversationID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[conversationID] {
		sub.Deliver(event, payload)
	}
}
