// Package signaling is the peer side of the room mailbox: an HTTP client for
// the offer/answer/candidate endpoints and the polling helpers built on it.
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BioHazard786/SyncPlayer/internal/dns"
	"github.com/BioHazard786/SyncPlayer/internal/version"
)

const maxResponseSize = 1 << 20

// ErrNotFound is a poll miss: the offer or answer is not there yet.
var ErrNotFound = errors.New("not found")

// StatusError is an unexpected HTTP status from the mailbox.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Code)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client talks to the room mailbox over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for serverURL. A nil httpClient gets one whose
// dialer uses the fallback DNS resolver.
func NewClient(serverURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = dns.DialContext
		httpClient = &http.Client{Transport: transport, Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(serverURL, "/"), http: httpClient}
}

func (c *Client) roomURL(roomID, suffix string) string {
	u := c.baseURL + "/room/" + url.PathEscape(roomID)
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func (c *Client) PostOffer(ctx context.Context, roomID string, offer any) error {
	return c.post(ctx, "post offer", c.roomURL(roomID, "offer"), map[string]any{"offer": offer})
}

func (c *Client) GetOffer(ctx context.Context, roomID string) (json.RawMessage, error) {
	var body struct {
		Offer json.RawMessage `json:"offer"`
	}
	if err := c.get(ctx, "get offer", c.roomURL(roomID, "offer"), &body); err != nil {
		return nil, err
	}
	return body.Offer, nil
}

func (c *Client) PostAnswer(ctx context.Context, roomID string, answer any) error {
	return c.post(ctx, "post answer", c.roomURL(roomID, "answer"), map[string]any{"answer": answer})
}

func (c *Client) GetAnswer(ctx context.Context, roomID string) (json.RawMessage, error) {
	var body struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := c.get(ctx, "get answer", c.roomURL(roomID, "answer"), &body); err != nil {
		return nil, err
	}
	return body.Answer, nil
}

// PostCandidate appends one candidate. candidate is sent verbatim so the
// poster can recognise its own entries later.
func (c *Client) PostCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error {
	return c.post(ctx, "post candidate", c.roomURL(roomID, "candidate"), map[string]json.RawMessage{"candidate": candidate})
}

func (c *Client) GetCandidates(ctx context.Context, roomID string) ([]json.RawMessage, error) {
	var body struct {
		Candidates []json.RawMessage `json:"candidates"`
	}
	if err := c.get(ctx, "get candidates", c.roomURL(roomID, "candidates"), &body); err != nil {
		return nil, err
	}
	if body.Candidates == nil {
		body.Candidates = []json.RawMessage{}
	}
	return body.Candidates, nil
}

// ClearRoom deletes everything stored for roomID.
func (c *Client) ClearRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, "clear room", http.MethodDelete, c.roomURL(roomID, ""), nil, nil)
}

// SendChat archives one chat line on the server.
func (c *Client) SendChat(ctx context.Context, roomID, sender, message string) error {
	return c.post(ctx, "send chat", c.baseURL+"/api/chat/send", map[string]string{
		"roomId":  roomID,
		"sender":  sender,
		"message": message,
	})
}

// ChatLine is an archived chat line.
type ChatLine struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// GetChat returns the archived chat of roomID.
func (c *Client) GetChat(ctx context.Context, roomID string) ([]ChatLine, error) {
	var body struct {
		Messages []ChatLine `json:"messages"`
	}
	u := c.baseURL + "/api/chat/get?roomId=" + url.QueryEscape(roomID)
	if err := c.get(ctx, "get chat", u, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (c *Client) post(ctx context.Context, op, u string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	return c.do(ctx, op, http.MethodPost, u, data, nil)
}

func (c *Client) get(ctx context.Context, op, u string, out any) error {
	return c.do(ctx, op, http.MethodGet, u, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "syncplayer/"+version.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &StatusError{Op: op, Code: resp.StatusCode, Body: e.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
