package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/mailbox"
	"github.com/BioHazard786/SyncPlayer/internal/server"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/pion/webrtc/v4"
)

func testConfig() *config.Config {
	return &config.Config{
		AnswerPollInterval:    20 * time.Millisecond,
		CandidatePollInterval: 20 * time.Millisecond,
	}
}

func loopback() Option {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	return WithSettingEngine(&se)
}

// recorder collects state changes and messages from hooks.
type recorder struct {
	mu     sync.Mutex
	states []State
	msgs   [][]byte
	seen   chan State
	got    chan []byte
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan State, 16), got: make(chan []byte, 16)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnStateChange: func(st State) {
			r.mu.Lock()
			r.states = append(r.states, st)
			r.mu.Unlock()
			r.seen <- st
		},
		OnMessage: func(b []byte) {
			r.mu.Lock()
			r.msgs = append(r.msgs, b)
			r.mu.Unlock()
			r.got <- b
		},
	}
}

func (r *recorder) waitFor(t *testing.T, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case st := <-r.seen:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

// fakeSignaler answers from fixed values and counts calls.
type fakeSignaler struct {
	offer       json.RawMessage
	answer      json.RawMessage
	candCalls   atomic.Int32
	answerCalls atomic.Int32
}

func (f *fakeSignaler) PostOffer(context.Context, string, any) error  { return nil }
func (f *fakeSignaler) PostAnswer(context.Context, string, any) error { return nil }

func (f *fakeSignaler) GetOffer(context.Context, string) (json.RawMessage, error) {
	if f.offer == nil {
		return nil, signaling.ErrNotFound
	}
	return f.offer, nil
}

func (f *fakeSignaler) GetAnswer(context.Context, string) (json.RawMessage, error) {
	f.answerCalls.Add(1)
	if f.answer == nil {
		return nil, signaling.ErrNotFound
	}
	return f.answer, nil
}

func (f *fakeSignaler) PostCandidate(context.Context, string, json.RawMessage) error { return nil }

func (f *fakeSignaler) GetCandidates(context.Context, string) ([]json.RawMessage, error) {
	f.candCalls.Add(1)
	return nil, nil
}

func TestStateTransitions(t *testing.T) {
	allowed := map[State][]State{
		Idle:        {Negotiating, Closed},
		Negotiating: {Connected, Failed, Closed},
		Connected:   {Closed},
		Failed:      {Closed},
		Closed:      {},
	}
	all := []State{Idle, Negotiating, Connected, Closed, Failed}
	for from, tos := range allowed {
		for _, to := range all {
			want := false
			for _, ok := range tos {
				if ok == to {
					want = true
				}
			}
			if got := from.canTransition(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestRoleAndStateStrings(t *testing.T) {
	if Host.String() != "host" || Joiner.String() != "joiner" {
		t.Errorf("Unexpected role names %s %s", Host, Joiner)
	}
	if Negotiating.String() != "negotiating" || Failed.String() != "failed" {
		t.Errorf("Unexpected state names %s %s", Negotiating, Failed)
	}
}

func TestErrorUnwraps(t *testing.T) {
	err := wrapError("negotiate", ErrNegotiationTimeout, "5s")
	if !errors.Is(err, ErrNegotiationTimeout) {
		t.Error("Expected errors.Is to find the sentinel")
	}
	if err.Error() != "negotiate: negotiation timed out (5s)" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	rec := newRecorder()
	s, err := New(testConfig(), Host, "R", &fakeSignaler{}, rec.hooks())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.State() != Closed {
		t.Errorf("Expected closed, got %s", s.State())
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.states) != 2 || rec.states[0] != Negotiating || rec.states[1] != Closed {
		t.Errorf("Expected [negotiating closed], got %v", rec.states)
	}
	if err := s.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Send, got %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Start, got %v", err)
	}
}

func TestSendBeforeOpen(t *testing.T) {
	s, err := New(testConfig(), Joiner, "R", &fakeSignaler{}, Hooks{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Send([]byte("x")); !errors.Is(err, ErrChannelNotOpen) {
		t.Errorf("Expected ErrChannelNotOpen, got %v", err)
	}
}

func TestCandidatesDeferredUntilRemoteDescription(t *testing.T) {
	sig := &fakeSignaler{}
	s, err := New(testConfig(), Host, "R", sig, Hooks{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	s.Close()

	if n := sig.candCalls.Load(); n != 0 {
		t.Errorf("Expected no candidate polls without an answer, got %d", n)
	}
}

func TestStaleOfferFails(t *testing.T) {
	rec := newRecorder()
	sig := &fakeSignaler{offer: json.RawMessage(`{"type":"offer","sdp":"garbage"}`)}
	s, err := New(testConfig(), Joiner, "R", sig, rec.hooks())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, Failed, 2*time.Second)
	if !errors.Is(s.Err(), ErrStaleNegotiation) {
		t.Errorf("Expected ErrStaleNegotiation, got %v", s.Err())
	}
}

func TestWrongDescriptionTypeFails(t *testing.T) {
	rec := newRecorder()
	sig := &fakeSignaler{answer: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)}
	s, err := New(testConfig(), Host, "R", sig, rec.hooks())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, Failed, 2*time.Second)
	if !errors.Is(s.Err(), ErrStaleNegotiation) {
		t.Errorf("Expected ErrStaleNegotiation, got %v", s.Err())
	}
}

func TestNegotiationTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.NegotiationTimeout = 50 * time.Millisecond

	rec := newRecorder()
	var hookErr atomic.Value
	hooks := rec.hooks()
	hooks.OnError = func(err error) { hookErr.Store(err) }

	s, err := New(cfg, Host, "R", &fakeSignaler{}, hooks)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, Failed, 2*time.Second)
	if !errors.Is(s.Err(), ErrNegotiationTimeout) {
		t.Errorf("Expected ErrNegotiationTimeout, got %v", s.Err())
	}
	if got, _ := hookErr.Load().(error); !errors.Is(got, ErrNegotiationTimeout) {
		t.Errorf("Expected OnError with the timeout, got %v", got)
	}
}

func TestFailedSessionStopsPolling(t *testing.T) {
	cfg := testConfig()
	cfg.NegotiationTimeout = 50 * time.Millisecond

	rec := newRecorder()
	sig := &fakeSignaler{}
	s, err := New(cfg, Host, "R", sig, rec.hooks())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, Failed, 2*time.Second)
	// Allow one poll that was already in flight.
	time.Sleep(30 * time.Millisecond)
	before := sig.answerCalls.Load()
	time.Sleep(200 * time.Millisecond)
	if after := sig.answerCalls.Load(); after != before {
		t.Errorf("Expected answer polling to stop after failure, got %d more polls", after-before)
	}

	if err := s.Send([]byte("x")); !errors.Is(err, ErrChannelNotOpen) {
		t.Errorf("Expected ErrChannelNotOpen from a failed session, got %v", err)
	}
	if s.State() != Failed {
		t.Errorf("Expected failed until closed, got %s", s.State())
	}
}

func TestHostAndJoinerConnect(t *testing.T) {
	srv := server.New(config.DefaultServerConfig(), mailbox.NewMemoryStore(), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := signaling.NewClient(ts.URL, ts.Client())

	hostRec, joinRec := newRecorder(), newRecorder()
	host, err := New(testConfig(), Host, "loop", client, hostRec.hooks(), loopback())
	if err != nil {
		t.Fatal(err)
	}
	joiner, err := New(testConfig(), Joiner, "loop", client, joinRec.hooks(), loopback())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := host.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := joiner.Start(ctx); err != nil {
		t.Fatal(err)
	}

	hostRec.waitFor(t, Connected, 15*time.Second)
	joinRec.waitFor(t, Connected, 15*time.Second)

	frame := []byte(`{"type":"control","action":"seek","time":42.5}`)
	if err := host.Send(frame); err != nil {
		t.Fatalf("host Send: %v", err)
	}
	select {
	case got := <-joinRec.got:
		if string(got) != string(frame) {
			t.Errorf("Expected %s, got %s", frame, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("joiner never received the frame")
	}

	if err := joiner.Send([]byte(`{"type":"control","action":"pause"}`)); err != nil {
		t.Fatalf("joiner Send: %v", err)
	}
	select {
	case <-hostRec.got:
	case <-time.After(5 * time.Second):
		t.Fatal("host never received the frame")
	}

	joiner.Close()
	host.Close()
	if host.State() != Closed || joiner.State() != Closed {
		t.Errorf("Expected both closed, got %s and %s", host.State(), joiner.State())
	}
}
