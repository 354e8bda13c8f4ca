// Package chat carries chat lines between peers and keeps the per-room
// archive served by the signaling server.
package chat

import (
	"sync"
	"time"
)

// Message is one archived chat line.
type Message struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type roomHistory struct {
	messages  []Message
	updatedAt time.Time
}

// History keeps the most recent lines of every room in memory.
type History struct {
	mu    sync.RWMutex
	rooms map[string]*roomHistory
	limit int
	now   func() time.Time
}

// NewHistory creates a History keeping at most limit lines per room.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 500
	}
	return &History{rooms: make(map[string]*roomHistory), limit: limit, now: time.Now}
}

func (h *History) Append(roomID string, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = &roomHistory{}
		h.rooms[roomID] = r
	}
	r.messages = append(r.messages, m)
	if over := len(r.messages) - h.limit; over > 0 {
		r.messages = append([]Message(nil), r.messages[over:]...)
	}
	r.updatedAt = h.now()
}

// List returns a copy of the room's lines, oldest first. It is never nil.
func (h *History) List(roomID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return []Message{}
	}
	return append([]Message{}, r.messages...)
}

func (h *History) Clear(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

// Sweep drops rooms that saw no message since olderThan.
func (h *History) Sweep(olderThan time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for id, r := range h.rooms {
		if r.updatedAt.Before(olderThan) {
			delete(h.rooms, id)
			n++
		}
	}
	return n
}
