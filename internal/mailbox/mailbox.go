package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable marks a transient backend failure. Callers retry on their
	// next poll tick.
	ErrUnavailable = errors.New("mailbox unavailable")

	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Room is one signaling mailbox. Payloads are opaque JSON documents written by
// the peers and handed back byte for byte.
type Room struct {
	Offer      json.RawMessage   `json:"offer,omitempty"`
	Answer     json.RawMessage   `json:"answer,omitempty"`
	Candidates []json.RawMessage `json:"candidates"`
}

// Empty reports whether nothing has been written to the room yet.
func (r *Room) Empty() bool {
	return len(r.Offer) == 0 && len(r.Answer) == 0 && len(r.Candidates) == 0
}

// Clone returns a deep copy so callers never share backing arrays with a store.
func (r *Room) Clone() *Room {
	out := &Room{
		Offer:      cloneRaw(r.Offer),
		Answer:     cloneRaw(r.Answer),
		Candidates: make([]json.RawMessage, len(r.Candidates)),
	}
	for i, c := range r.Candidates {
		out.Candidates[i] = cloneRaw(c)
	}
	return out
}

// Store is the room-keyed mailbox shared by the two peers of a room.
//
// Get never reports a missing room: an absent room is returned empty.
// SetOffer and SetAnswer overwrite (last write wins), AppendCandidate only
// ever appends.
type Store interface {
	Get(ctx context.Context, roomID string) (*Room, error)
	SetOffer(ctx context.Context, roomID string, offer json.RawMessage) error
	SetAnswer(ctx context.Context, roomID string, answer json.RawMessage) error
	AppendCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error
	Clear(ctx context.Context, roomID string) error
	Close() error
}

// Sweeper is implemented by stores that need an external janitor to apply
// the retention policy.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}

// Error describes a failed backend operation.
type Error struct {
	Op     string
	RoomID string
	Err    error
}

func (e *Error) Error() string {
	if e.RoomID != "" {
		return fmt.Sprintf("mailbox %s %s: %v", e.Op, e.RoomID, e.Err)
	}
	return fmt.Sprintf("mailbox %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

func unavailable(op, roomID string, err error) error {
	return &Error{Op: op, RoomID: roomID, Err: err}
}

func checkRoom(roomID string) error {
	if roomID == "" {
		return ErrInvalidRoomID
	}
	return nil
}

func checkPayload(roomID string, payload json.RawMessage) error {
	if err := checkRoom(roomID); err != nil {
		return err
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
