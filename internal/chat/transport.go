package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/SyncPlayer/internal/control"
)

var ErrEmpty = errors.New("empty chat message")

// Line is a chat line as shown in the UI.
type Line struct {
	Name   string
	Text   string
	Local  bool
	SentAt time.Time
}

// Sender delivers an encoded frame over the data channel.
type Sender interface {
	Send(data []byte) error
}

// Archiver stores a line on the signaling server.
type Archiver interface {
	SendChat(ctx context.Context, roomID, sender, message string) error
}

// Transport sends chat lines to the peer and hands received ones to the UI.
// Outgoing lines are also archived on the server when an Archiver is set;
// archive failures are only logged.
type Transport struct {
	roomID  string
	name    string
	out     Sender
	archive Archiver
	log     *slog.Logger

	mu      sync.Mutex
	lines   []Line
	onLine  func(Line)
	archWG  sync.WaitGroup
	timeout time.Duration
}

func NewTransport(roomID, name string, out Sender, archive Archiver, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	return &Transport{
		roomID:  roomID,
		name:    name,
		out:     out,
		archive: archive,
		log:     log.With("component", "chat"),
		timeout: 5 * time.Second,
	}
}

// OnLine registers the callback for every line, local or remote.
func (t *Transport) OnLine(fn func(Line)) {
	t.mu.Lock()
	t.onLine = fn
	t.mu.Unlock()
}

// Send delivers text to the peer.
func (t *Transport) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	data, err := control.Encode(control.ChatMessage(t.name, text))
	if err != nil {
		return err
	}
	if err := t.out.Send(data); err != nil {
		return err
	}
	t.record(Line{Name: t.name, Text: text, Local: true, SentAt: time.Now()})

	if t.archive != nil {
		t.archWG.Add(1)
		go func() {
			defer t.archWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			defer cancel()
			if err := t.archive.SendChat(ctx, t.roomID, t.name, text); err != nil {
				t.log.Warn("chat archive failed", "error", err)
			}
		}()
	}
	return nil
}

// Deliver records a line received from the peer.
func (t *Transport) Deliver(name, text string) {
	t.record(Line{Name: name, Text: text, SentAt: time.Now()})
}

// Lines returns every line seen so far.
func (t *Transport) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Line(nil), t.lines...)
}

// Wait blocks until pending archive requests are done.
func (t *Transport) Wait() {
	t.archWG.Wait()
}

func (t *Transport) record(l Line) {
	t.mu.Lock()
	t.lines = append(t.lines, l)
	fn := t.onLine
	t.mu.Unlock()
	if fn != nil {
		fn(l)
	}
}
