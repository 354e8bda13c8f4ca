// Package session runs one side of a room: a single WebRTC peer connection
// with one data channel, negotiated through the room mailbox.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// Signaler is the mailbox client a session negotiates through.
type Signaler interface {
	PostOffer(ctx context.Context, roomID string, offer any) error
	GetOffer(ctx context.Context, roomID string) (json.RawMessage, error)
	PostAnswer(ctx context.Context, roomID string, answer any) error
	GetAnswer(ctx context.Context, roomID string) (json.RawMessage, error)
	PostCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error
	GetCandidates(ctx context.Context, roomID string) ([]json.RawMessage, error)
}

// Hooks are called from pion and poller goroutines. Keep them short.
type Hooks struct {
	OnStateChange func(State)
	OnMessage     func([]byte)
	OnError       func(error)
}

// Option tweaks a session before it is created.
type Option func(*Session)

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithSettingEngine overrides pion's setting engine, for example to gather
// loopback candidates in tests.
func WithSettingEngine(se *webrtc.SettingEngine) Option {
	return func(s *Session) { s.settings = se }
}

type Session struct {
	cfg      *config.Config
	role     Role
	roomID   string
	sig      Signaler
	hooks    Hooks
	log      *slog.Logger
	settings *webrtc.SettingEngine

	pc      *webrtc.PeerConnection
	tracker *signaling.CandidateTracker
	poster  *signaling.Poster

	mu    sync.Mutex
	state State
	dc    *webrtc.DataChannel
	err   error

	alive     atomic.Bool
	remoteSet atomic.Bool
	started   atomic.Bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates an idle session. Nothing touches the network until Start.
func New(cfg *config.Config, role Role, roomID string, sig Signaler, hooks Hooks, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:     cfg,
		role:    role,
		roomID:  roomID,
		sig:     sig,
		hooks:   hooks,
		tracker: signaling.NewCandidateTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("room", roomID, "role", role.String())

	pc, err := newPeerConnection(cfg, s.settings)
	if err != nil {
		return nil, err
	}
	s.pc = pc
	s.poster = signaling.NewPoster(sig, roomID, s.tracker, cfg.CandidatePollInterval, s.log)
	s.alive.Store(true)
	return s, nil
}

func (s *Session) Role() Role     { return s.role }
func (s *Session) RoomID() string { return s.roomID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the session failed, if it did.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start begins negotiation in the background. It returns once the local side
// is set up; progress is reported through Hooks.OnStateChange.
func (s *Session) Start(ctx context.Context) error {
	if !s.alive.Load() {
		return newError("start", ErrClosed)
	}
	if !s.started.CompareAndSwap(false, true) {
		return newError("start", ErrAlreadyStarted)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || !s.alive.Load() {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			s.log.Warn("encoding local candidate failed", "error", err)
			return
		}
		s.poster.Enqueue(ctx, raw)
	})
	s.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if !s.alive.Load() {
			return
		}
		s.log.Debug("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			if s.State() == Negotiating {
				s.fail(newError("connect", ErrConnectionFailed))
				return
			}
			go s.Close()
		case webrtc.PeerConnectionStateClosed:
			go s.Close()
		}
	})

	s.setState(Negotiating)

	var offer *webrtc.SessionDescription
	if s.role == Host {
		dc, err := createDataChannel(s.pc)
		if err != nil {
			s.fail(err)
			return err
		}
		s.bindChannel(dc)
		if offer, err = createOffer(s.pc); err != nil {
			s.fail(err)
			return err
		}
	} else {
		s.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if !s.alive.Load() {
				return
			}
			if dc.Label() != ChannelLabel {
				s.log.Warn("ignoring unexpected data channel", "label", dc.Label())
				return
			}
			s.bindChannel(dc)
		})
	}

	s.spawn(func() { s.poster.Run(ctx) })
	s.spawn(func() { s.pollCandidates(ctx) })
	if s.role == Host {
		s.spawn(func() { s.negotiateHost(ctx, offer) })
	} else {
		s.spawn(func() { s.negotiateJoiner(ctx) })
	}
	if t := s.cfg.NegotiationTimeout; t > 0 {
		s.spawn(func() { s.watchNegotiation(ctx, t) })
	}
	return nil
}

// Send writes one text frame on the data channel.
func (s *Session) Send(data []byte) error {
	if !s.alive.Load() {
		return newError("send", ErrClosed)
	}
	dc := s.channel()
	if s.State() != Connected || dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return newError("send", ErrChannelNotOpen)
	}
	if err := dc.SendText(string(data)); err != nil {
		return newError("send", err)
	}
	return nil
}

// Close tears the session down. It is safe to call more than once and from
// any goroutine other than a session hook.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		if s.cancel != nil {
			s.cancel()
		}

		if dc := s.channel(); dc != nil {
			dc.OnOpen(func() {})
			dc.OnClose(func() {})
			dc.OnMessage(func(webrtc.DataChannelMessage) {})
			dc.OnError(func(error) {})
			if err := dc.Close(); err != nil {
				s.log.Debug("closing data channel", "error", err)
			}
		}
		s.pc.OnICECandidate(func(*webrtc.ICECandidate) {})
		s.pc.OnConnectionStateChange(func(webrtc.PeerConnectionState) {})
		s.pc.OnDataChannel(func(*webrtc.DataChannel) {})
		if err := s.pc.Close(); err != nil {
			s.closeErr = newError("close peer connection", err)
		}

		s.wg.Wait()
		s.setState(Closed)
	})
	return s.closeErr
}

func (s *Session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Session) channel() *webrtc.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc
}

func (s *Session) bindChannel(dc *webrtc.DataChannel) {
	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()

	dc.OnOpen(func() {
		if !s.alive.Load() {
			return
		}
		s.setState(Connected)
	})
	dc.OnClose(func() {
		if !s.alive.Load() {
			return
		}
		s.log.Info("data channel closed by peer")
		go s.Close()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !s.alive.Load() || s.hooks.OnMessage == nil || s.State() != Connected {
			return
		}
		s.hooks.OnMessage(msg.Data)
	})
	dc.OnError(func(err error) {
		if !s.alive.Load() {
			return
		}
		s.log.Warn("data channel error", "error", err)
		if s.hooks.OnError != nil {
			s.hooks.OnError(err)
		}
	})
}

func (s *Session) setState(to State) bool {
	return s.transition(to, nil)
}

// transition moves to the next state, recording cause on the way into Failed.
func (s *Session) transition(to State, cause error) bool {
	s.mu.Lock()
	from := s.state
	if !from.canTransition(to) {
		s.mu.Unlock()
		return false
	}
	s.state = to
	if cause != nil {
		s.err = cause
	}
	s.mu.Unlock()

	// A failed session stops negotiating; only Close moves it on.
	if to == Failed && s.cancel != nil {
		s.cancel()
	}

	s.log.Info("session state changed", "from", from.String(), "to", to.String())
	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(to)
	}
	return true
}

// fail moves a negotiating session to Failed. Failures in any other state
// are dropped.
func (s *Session) fail(err error) {
	if s.State() != Negotiating {
		return
	}
	if s.transition(Failed, err) && s.hooks.OnError != nil {
		s.hooks.OnError(err)
	}
}

func (s *Session) applyRemote(raw json.RawMessage, want webrtc.SDPType) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return wrapError("set remote description", ErrStaleNegotiation, err.Error())
	}
	if desc.Type != want {
		return wrapError("set remote description", ErrStaleNegotiation, fmt.Sprintf("expected %s, got %s", want, desc.Type))
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return wrapError("set remote description", ErrStaleNegotiation, err.Error())
	}
	s.remoteSet.Store(true)
	return nil
}

// transient logs a mailbox error that the next tick will retry.
func (s *Session) transient(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.log.Warn("mailbox request failed, retrying", "op", op, "error", err)
}

func (s *Session) negotiateHost(ctx context.Context, offer *webrtc.SessionDescription) {
	posted := false
	_ = signaling.Poll(ctx, s.cfg.AnswerPollInterval, func(ctx context.Context) (bool, error) {
		if !s.alive.Load() {
			return true, nil
		}
		if !posted {
			if err := s.sig.PostOffer(ctx, s.roomID, offer); err != nil {
				s.transient(ctx, "post offer", err)
				return false, nil
			}
			posted = true
			s.log.Debug("offer posted")
		}

		raw, err := s.sig.GetAnswer(ctx, s.roomID)
		if errors.Is(err, signaling.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			s.transient(ctx, "get answer", err)
			return false, nil
		}
		if err := s.applyRemote(raw, webrtc.SDPTypeAnswer); err != nil {
			s.log.Debug("answer rejected", "error", err)
			s.fail(err)
			return true, nil
		}
		s.log.Debug("answer applied")
		return true, nil
	})
}

func (s *Session) negotiateJoiner(ctx context.Context) {
	var answer *webrtc.SessionDescription
	_ = signaling.Poll(ctx, s.cfg.AnswerPollInterval, func(ctx context.Context) (bool, error) {
		if !s.alive.Load() {
			return true, nil
		}
		if answer == nil {
			raw, err := s.sig.GetOffer(ctx, s.roomID)
			if errors.Is(err, signaling.ErrNotFound) {
				return false, nil
			}
			if err != nil {
				s.transient(ctx, "get offer", err)
				return false, nil
			}
			if err := s.applyRemote(raw, webrtc.SDPTypeOffer); err != nil {
				s.log.Debug("offer rejected", "error", err)
				s.fail(err)
				return true, nil
			}
			if answer, err = createAnswer(s.pc); err != nil {
				s.fail(err)
				return true, nil
			}
		}

		if err := s.sig.PostAnswer(ctx, s.roomID, answer); err != nil {
			s.transient(ctx, "post answer", err)
			return false, nil
		}
		s.log.Debug("answer posted")
		return true, nil
	})
}

// pollCandidates applies the remote side's candidates until teardown.
// Nothing is consumed before a remote description is set.
func (s *Session) pollCandidates(ctx context.Context) {
	_ = signaling.Poll(ctx, s.cfg.CandidatePollInterval, func(ctx context.Context) (bool, error) {
		if !s.alive.Load() {
			return true, nil
		}
		if !s.remoteSet.Load() {
			return false, nil
		}
		list, err := s.sig.GetCandidates(ctx, s.roomID)
		if err != nil {
			s.transient(ctx, "get candidates", err)
			return false, nil
		}
		for _, raw := range s.tracker.Take(list) {
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal(raw, &init); err != nil {
				s.log.Warn("dropping malformed candidate", "error", err)
				continue
			}
			if err := s.pc.AddICECandidate(init); err != nil {
				s.log.Warn("adding remote candidate failed", "error", err)
			}
		}
		return false, nil
	})
}

func (s *Session) watchNegotiation(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		if s.alive.Load() && s.State() == Negotiating {
			s.fail(wrapError("negotiate", ErrNegotiationTimeout, timeout.String()))
		}
	}
}
