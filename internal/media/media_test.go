package media

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recorder struct {
	mu     sync.Mutex
	events []string
	seeks  []float64
}

func (r *recorder) Played() { r.add("played") }
func (r *recorder) Paused() { r.add("paused") }
func (r *recorder) Seeked(p float64) {
	r.mu.Lock()
	r.seeks = append(r.seeks, p)
	r.mu.Unlock()
	r.add("seeked")
}

func (r *recorder) Rejected(cmd string) { r.add("rejected " + cmd) }

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time           { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestClockAdvancesWhilePlaying(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	c := NewClock(0)
	c.now = ft.now

	if !c.Paused() {
		t.Fatal("Expected a new clock to be paused")
	}
	c.Play()
	ft.advance(3 * time.Second)
	if got := c.Position(); got != 3 {
		t.Errorf("Expected position 3, got %v", got)
	}
	c.Pause()
	ft.advance(5 * time.Second)
	if got := c.Position(); got != 3 {
		t.Errorf("Expected position to stay at 3 while paused, got %v", got)
	}
}

func TestClockNotifiesOnlyOnChange(t *testing.T) {
	c := NewClock(0)
	rec := &recorder{}
	c.SetObserver(rec)

	c.Pause() // already paused
	c.Play()
	c.Play() // already playing
	c.Seek(42.5)
	c.Pause()

	got := strings.Join(rec.snapshot(), ",")
	if got != "played,seeked,paused" {
		t.Errorf("Expected played,seeked,paused, got %s", got)
	}
	if rec.seeks[0] != 42.5 {
		t.Errorf("Expected seek to 42.5, got %v", rec.seeks[0])
	}
}

func TestClockClampsToDuration(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	c := NewClock(10 * time.Second)
	c.now = ft.now

	c.Seek(-4)
	if got := c.Position(); got != 0 {
		t.Errorf("Expected negative seek to clamp to 0, got %v", got)
	}
	c.Seek(99)
	if got := c.Position(); got != 10 {
		t.Errorf("Expected seek to clamp to 10, got %v", got)
	}

	c.Seek(8)
	c.Play()
	ft.advance(5 * time.Second)
	if !c.Paused() {
		t.Error("Expected clock to stop at the end")
	}
	if got := c.Position(); got != 10 {
		t.Errorf("Expected position 10 at the end, got %v", got)
	}
}

func TestBridgeWithoutPageActsAsPlayer(t *testing.T) {
	ft := &fakeTime{t: time.Unix(1000, 0)}
	b := NewBridge("", nil)
	b.now = ft.now
	b.updated = ft.now()
	rec := &recorder{}
	b.SetObserver(rec)

	b.Play()
	ft.advance(time.Second)
	b.Seek(12)
	ft.advance(2 * time.Second)
	b.Pause()
	b.Pause()

	got := strings.Join(rec.snapshot(), ",")
	if got != "played,seeked,paused" {
		t.Errorf("Expected played,seeked,paused, got %s", got)
	}
	if b.Position() != 14 {
		t.Errorf("Expected position 14, got %v", b.Position())
	}
	ft.advance(time.Minute)
	if b.Position() != 14 {
		t.Errorf("Expected a paused bridge to hold 14, got %v", b.Position())
	}
}

func dialBridge(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Expected websocket dial to succeed, got %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBridgeWebsocketRoundTrip(t *testing.T) {
	b := NewBridge("", nil)
	rec := &recorder{}
	b.SetObserver(rec)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dialBridge(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var cmd Command
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("Expected initial state command, got %v", err)
	}
	if cmd.Cmd != "state" || cmd.Paused == nil || !*cmd.Paused {
		t.Errorf("Expected paused state command, got %+v", cmd)
	}
	waitFor(t, b.Attached)

	// Commands go to the page, not straight to the observer.
	b.Seek(42.5)
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("Expected seek command, got %v", err)
	}
	if cmd.Cmd != "seek" || cmd.Time == nil || *cmd.Time != 42.5 {
		t.Errorf("Expected seek to 42.5, got %+v", cmd)
	}
	if len(rec.snapshot()) != 0 {
		t.Errorf("Expected no notification before the page reports, got %v", rec.snapshot())
	}

	// The page reports a user action.
	if err := conn.WriteJSON(Event{Event: "played", Position: 42.5}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	if rec.snapshot()[0] != "played" {
		t.Errorf("Expected played, got %v", rec.snapshot())
	}
	if b.Paused() {
		t.Error("Expected mirror to be playing")
	}

	// A tick that matches the mirror only refreshes the position.
	if err := conn.WriteJSON(Event{Event: "tick", Position: 50}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return b.Position() >= 50 })
	if len(rec.snapshot()) != 1 {
		t.Errorf("Expected tick to stay silent, got %v", rec.snapshot())
	}

	// A tick that disagrees reports the change the page never announced.
	if err := conn.WriteJSON(Event{Event: "tick", Position: 51, Paused: true}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	if rec.snapshot()[1] != "paused" || !b.Paused() {
		t.Errorf("Expected paused from tick, got %v", rec.snapshot())
	}
}

func TestBridgeReportsRejectedCommand(t *testing.T) {
	b := NewBridge("", nil)
	rec := &recorder{}
	b.SetObserver(rec)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn := dialBridge(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var cmd Command
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("Expected initial state command, got %v", err)
	}
	waitFor(t, b.Attached)

	b.Play()
	if err := conn.ReadJSON(&cmd); err != nil || cmd.Cmd != "play" {
		t.Fatalf("Expected play command, got %+v (%v)", cmd, err)
	}
	if err := conn.WriteJSON(Event{Event: "rejected", Cmd: "play", Paused: true}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	if got := rec.snapshot()[0]; got != "rejected play" {
		t.Errorf("Expected rejected play, got %s", got)
	}
	if !b.Paused() {
		t.Error("Expected mirror to stay paused")
	}
}

func TestBridgeServesPage(t *testing.T) {
	b := NewBridge("", nil)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<video") {
		t.Errorf("Expected the player page, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/media")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without media, got %d", resp.StatusCode)
	}
}
