package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/mailbox"
	"github.com/BioHazard786/SyncPlayer/internal/server"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
)

func newTestClient(t *testing.T) *signaling.Client {
	t.Helper()
	srv := server.New(config.DefaultServerConfig(), mailbox.NewMemoryStore(), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return signaling.NewClient(ts.URL, ts.Client())
}

func TestDescribeSDP(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{`{"type":"offer","sdp":"v=0\r\n"}`, "offer (5 bytes of SDP)"},
		{`"opaque"`, "present (8 bytes, not a session description)"},
	}
	for _, tt := range tests {
		if got := describeSDP(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("describeSDP(%s): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestInspectRoom(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.PostOffer(ctx, "movie-night", map[string]string{"type": "offer", "sdp": "v=0"}); err != nil {
		t.Fatal(err)
	}
	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 10.0.0.2 5000 typ host","sdpMid":"0"}`)
	if err := client.PostCandidate(ctx, "movie-night", cand); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := inspectRoom(ctx, client, "movie-night", &out); err != nil {
		t.Fatalf("inspectRoom: %v", err)
	}
	for _, want := range []string{"Room movie-night", "offer (3 bytes of SDP)", "10.0.0.2:5000", "host"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out.String())
		}
	}
}

func TestInspectEmptyRoom(t *testing.T) {
	var out bytes.Buffer
	if err := inspectRoom(context.Background(), newTestClient(t), "nobody-here", &out); err != nil {
		t.Fatalf("inspectRoom: %v", err)
	}
	if !strings.Contains(out.String(), "Room nobody-here") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
}

func TestOpenRoomClearsExplicitID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.PostAnswer(ctx, "movie-night", map[string]string{"type": "answer", "sdp": "stale"}); err != nil {
		t.Fatal(err)
	}

	id, err := openRoom(ctx, client, "https://example.com/room/movie-night?role=join")
	if err != nil {
		t.Fatalf("openRoom: %v", err)
	}
	if id != "movie-night" {
		t.Errorf("Expected movie-night, got %q", id)
	}
	if _, err := client.GetAnswer(ctx, id); !errors.Is(err, signaling.ErrNotFound) {
		t.Errorf("Expected the stale answer to be cleared, got %v", err)
	}
}

func TestOpenRoomGeneratesFreeID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	id, err := openRoom(ctx, client, "")
	if err != nil {
		t.Fatalf("openRoom: %v", err)
	}
	if strings.Count(id, "-") < 3 {
		t.Errorf("Expected a four word id, got %q", id)
	}
	if _, err := client.GetOffer(ctx, id); !errors.Is(err, signaling.ErrNotFound) {
		t.Errorf("Expected a free room, got %v", err)
	}
}
