package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Poll calls fn right away and then every interval until fn reports done,
// fn fails, or ctx ends. Transient failures are for fn to swallow.
func Poll(ctx context.Context, interval time.Duration, fn func(ctx context.Context) (done bool, err error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := fn(ctx)
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CandidateTracker remembers which entries of a room's candidate list this
// side has already consumed and which ones it posted itself.
type CandidateTracker struct {
	mu   sync.Mutex
	own  map[string]struct{}
	next int
}

func NewCandidateTracker() *CandidateTracker {
	return &CandidateTracker{own: make(map[string]struct{})}
}

// MarkOwn records a payload posted by this side.
func (t *CandidateTracker) MarkOwn(payload json.RawMessage) {
	t.mu.Lock()
	t.own[string(payload)] = struct{}{}
	t.mu.Unlock()
}

// Take returns the entries of list not consumed yet and not posted by this
// side, in list order, and marks the whole list consumed.
func (t *CandidateTracker) Take(list []json.RawMessage) []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(list) < t.next {
		// The room was cleared and refilled.
		t.next = 0
	}
	var out []json.RawMessage
	for _, c := range list[t.next:] {
		if _, mine := t.own[string(c)]; mine {
			continue
		}
		out = append(out, c)
	}
	t.next = len(list)
	return out
}

// Consumed returns how many list entries have been consumed.
func (t *CandidateTracker) Consumed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// CandidatePoster is the part of the mailbox client the Poster needs.
type CandidatePoster interface {
	PostCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error
}

// Poster posts local candidates one at a time, in the order they were
// queued. A failed post is retried before the next candidate goes out.
type Poster struct {
	client  CandidatePoster
	roomID  string
	tracker *CandidateTracker
	retry   time.Duration
	log     *slog.Logger

	queue chan json.RawMessage
}

func NewPoster(client CandidatePoster, roomID string, tracker *CandidateTracker, retry time.Duration, log *slog.Logger) *Poster {
	if log == nil {
		log = slog.Default()
	}
	if retry <= 0 {
		retry = time.Second
	}
	return &Poster{
		client:  client,
		roomID:  roomID,
		tracker: tracker,
		retry:   retry,
		log:     log,
		queue:   make(chan json.RawMessage, 64),
	}
}

// Enqueue queues a candidate. It never blocks past ctx.
func (p *Poster) Enqueue(ctx context.Context, candidate json.RawMessage) {
	p.tracker.MarkOwn(candidate)
	select {
	case p.queue <- candidate:
	case <-ctx.Done():
	}
}

// Run posts queued candidates until ctx ends.
func (p *Poster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-p.queue:
			p.post(ctx, c)
		}
	}
}

func (p *Poster) post(ctx context.Context, c json.RawMessage) {
	for {
		err := p.client.PostCandidate(ctx, p.roomID, c)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("posting candidate failed, retrying", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retry):
		}
	}
}
