package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/mailbox"
	"github.com/BioHazard786/SyncPlayer/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	srv := server.New(config.DefaultServerConfig(), mailbox.NewMemoryStore(), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", ts.Client())
}

type sdp struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func TestOfferAnswerRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	if _, err := c.GetOffer(ctx, "R"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before offer, got %v", err)
	}
	if err := c.PostOffer(ctx, "R", sdp{"offer", "X"}); err != nil {
		t.Fatalf("PostOffer: %v", err)
	}
	raw, err := c.GetOffer(ctx, "R")
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	var got sdp
	if err := json.Unmarshal(raw, &got); err != nil || got.SDP != "X" {
		t.Errorf("Expected offer X, got %s (%v)", raw, err)
	}

	if _, err := c.GetAnswer(ctx, "R"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before answer, got %v", err)
	}
	_ = c.PostAnswer(ctx, "R", sdp{"answer", "Y"})
	if raw, err = c.GetAnswer(ctx, "R"); err != nil || string(raw) != `{"type":"answer","sdp":"Y"}` {
		t.Errorf("Expected answer Y, got %s (%v)", raw, err)
	}

	if err := c.ClearRoom(ctx, "R"); err != nil {
		t.Fatalf("ClearRoom: %v", err)
	}
	if _, err := c.GetOffer(ctx, "R"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after clear, got %v", err)
	}
}

func TestStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"store unavailable"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, ts.Client())
	_, err := c.GetCandidates(context.Background(), "R")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Body != "store unavailable" || !se.Temporary() {
		t.Errorf("Unexpected status error %+v", se)
	}
}

func TestChatArchive(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	if err := c.SendChat(ctx, "R", "alice", "hi"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	lines, err := c.GetChat(ctx, "R")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if len(lines) != 1 || lines[0].Sender != "alice" || lines[0].Message != "hi" {
		t.Errorf("Unexpected chat %+v", lines)
	}
}

// Each side posts three candidates, interleaved, and sees only the other three.
func TestCandidateExchange(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	host, joiner := NewCandidateTracker(), NewCandidateTracker()
	for i := 0; i < 3; i++ {
		h := json.RawMessage(fmt.Sprintf(`{"candidate":"h%d"}`, i))
		j := json.RawMessage(fmt.Sprintf(`{"candidate":"j%d"}`, i))
		host.MarkOwn(h)
		if err := c.PostCandidate(ctx, "R", h); err != nil {
			t.Fatal(err)
		}
		joiner.MarkOwn(j)
		if err := c.PostCandidate(ctx, "R", j); err != nil {
			t.Fatal(err)
		}
	}

	list, err := c.GetCandidates(ctx, "R")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 6 {
		t.Fatalf("Expected 6 candidates, got %d", len(list))
	}

	check := func(name string, got []json.RawMessage, prefix string) {
		t.Helper()
		if len(got) != 3 {
			t.Fatalf("%s: expected 3 candidates, got %d", name, len(got))
		}
		for i, c := range got {
			if want := fmt.Sprintf(`{"candidate":"%s%d"}`, prefix, i); string(c) != want {
				t.Errorf("%s: candidate %d: expected %s, got %s", name, i, want, c)
			}
		}
	}
	check("host", host.Take(list), "j")
	check("joiner", joiner.Take(list), "h")

	if again := host.Take(list); len(again) != 0 {
		t.Errorf("Expected nothing new on re-poll, got %d", len(again))
	}
}

func TestCandidateTrackerResetsOnShrink(t *testing.T) {
	tr := NewCandidateTracker()
	tr.Take([]json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)})
	if tr.Consumed() != 2 {
		t.Fatalf("Expected 2 consumed, got %d", tr.Consumed())
	}
	got := tr.Take([]json.RawMessage{json.RawMessage(`3`)})
	if len(got) != 1 || string(got[0]) != "3" {
		t.Errorf("Expected refilled list to be read from the start, got %v", got)
	}
}

func TestPollStopsWhenDone(t *testing.T) {
	var calls atomic.Int32
	err := Poll(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		return calls.Add(1) == 3, nil
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestPollStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	err := Poll(ctx, time.Millisecond, func(context.Context) (bool, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPollReturnsFatalError(t *testing.T) {
	boom := errors.New("boom")
	err := Poll(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
}

func TestPosterKeepsOrder(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewCandidateTracker()
	p := NewPoster(c, "R", tr, 10*time.Millisecond, nil)
	go p.Run(ctx)
	for i := 0; i < 5; i++ {
		p.Enqueue(ctx, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		list, err := c.GetCandidates(ctx, "R")
		if err == nil && len(list) == 5 {
			for i, raw := range list {
				if want := fmt.Sprintf(`{"n":%d}`, i); string(raw) != want {
					t.Errorf("candidate %d: expected %s, got %s", i, want, raw)
				}
			}
			if own := tr.Take(list); len(own) != 0 {
				t.Errorf("Expected own candidates filtered, got %d", len(own))
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 5 candidates, got %d (%v)", len(list), err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDescribeCandidate(t *testing.T) {
	raw := json.RawMessage(`{"candidate":"candidate:1966762133 1 udp 2130706431 192.168.1.20 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`)
	got := DescribeCandidate(raw)
	want := CandidateInfo{Type: "host", Protocol: "udp", Address: "192.168.1.20:54321", Mid: "0"}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	got = DescribeCandidate(json.RawMessage(`{"candidate":"candidate:2 1 TCP 1 ::1 9 typ srflx raddr 0.0.0.0 rport 0"}`))
	if got.Protocol != "tcp" || got.Address != "[::1]:9" || got.Type != "srflx" || got.Mid != "" {
		t.Errorf("Unexpected %+v", got)
	}

	if got := DescribeCandidate(json.RawMessage(`"garbage"`)); got != (CandidateInfo{}) {
		t.Errorf("Expected zero info for garbage, got %+v", got)
	}
}
