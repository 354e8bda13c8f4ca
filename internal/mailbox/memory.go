package mailbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryRoom struct {
	room      *Room
	updatedAt time.Time
}

// MemoryStore keeps rooms in process memory. It is the default backend of a
// single signaling server.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory mailbox.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*memoryRoom),
		now:   time.Now,
	}
}

// room returns the entry for roomID, creating it lazily. Callers hold mu.
func (s *MemoryStore) room(roomID string) *memoryRoom {
	r, ok := s.rooms[roomID]
	if !ok {
		r = &memoryRoom{room: &Room{Candidates: []json.RawMessage{}}, updatedAt: s.now()}
		s.rooms[roomID] = r
	}
	return r
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (*Room, error) {
	if err := checkRoom(roomID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	if ok {
		out := r.room.Clone()
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room(roomID).room.Clone(), nil
}

func (s *MemoryStore) SetOffer(ctx context.Context, roomID string, offer json.RawMessage) error {
	if err := checkPayload(roomID, offer); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	r.room.Offer = cloneRaw(offer)
	r.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetAnswer(ctx context.Context, roomID string, answer json.RawMessage) error {
	if err := checkPayload(roomID, answer); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	r.room.Answer = cloneRaw(answer)
	r.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) AppendCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error {
	if err := checkPayload(roomID, candidate); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	r.room.Candidates = append(r.room.Candidates, cloneRaw(candidate))
	r.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, roomID string) error {
	if err := checkRoom(roomID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// Sweep drops every room that has not been written since olderThan.
func (s *MemoryStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.rooms {
		if r.updatedAt.Before(olderThan) {
			delete(s.rooms, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of rooms currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *MemoryStore) Close() error { return nil }
