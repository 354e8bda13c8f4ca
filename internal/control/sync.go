package control

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/SyncPlayer/internal/media"
)

// Origin tells whether an action was taken on this side or arrived from the
// peer. It never goes on the wire.
type Origin int

const (
	Local Origin = iota
	Remote
)

func (o Origin) String() string {
	if o == Remote {
		return "remote"
	}
	return "local"
}

// Sender delivers an encoded frame to the peer.
type Sender interface {
	Send(data []byte) error
}

// Hooks are optional callbacks for the UI.
type Hooks struct {
	OnAction     func(action Action, origin Origin, t float64)
	OnRemoteFile func(name string)
	OnChat       func(name, text string)
}

// Sync keeps a local surface and the peer in step. Local actions reported by
// the surface are sent to the peer; remote actions are applied to the surface
// and never sent back.
type Sync struct {
	surface media.Surface
	out     Sender
	hooks   Hooks
	log     *slog.Logger

	// Single-shot guards: armed right before a remote action is applied so
	// the surface's own notification of it is swallowed.
	ignoreNextSeek  atomic.Bool
	ignoreNextPlay  atomic.Bool
	ignoreNextPause atomic.Bool

	mu         sync.Mutex
	localFile  string
	remoteFile string
}

// New binds a Sync to surface and registers it as the surface's observer.
func New(surface media.Surface, out Sender, hooks Hooks, log *slog.Logger) *Sync {
	if log == nil {
		log = slog.Default()
	}
	s := &Sync{
		surface: surface,
		out:     out,
		hooks:   hooks,
		log:     log.With("component", "control"),
	}
	surface.SetObserver(s)
	return s
}

// HandleControl runs action with the given origin. Local actions are sent to
// the peer, remote ones are applied to the surface.
func (s *Sync) HandleControl(action Action, origin Origin, t float64) error {
	if !action.valid() {
		return ErrUnknownAction
	}
	if s.hooks.OnAction != nil {
		s.hooks.OnAction(action, origin, t)
	}

	if origin == Local {
		return s.send(ControlMessage(action, t))
	}

	switch action {
	case ActionPlay:
		if s.surface.Paused() {
			s.ignoreNextPlay.Store(true)
		}
		s.surface.Play()
	case ActionPause:
		if !s.surface.Paused() {
			s.ignoreNextPause.Store(true)
		}
		s.surface.Pause()
	case ActionSeek:
		s.ignoreNextSeek.Store(true)
		s.surface.Seek(t)
	}
	return nil
}

// Played implements media.Observer.
func (s *Sync) Played() {
	if s.ignoreNextPlay.CompareAndSwap(true, false) {
		s.log.Debug("suppressed play echo")
		return
	}
	s.report(ActionPlay, 0)
}

// Paused implements media.Observer.
func (s *Sync) Paused() {
	if s.ignoreNextPause.CompareAndSwap(true, false) {
		s.log.Debug("suppressed pause echo")
		return
	}
	s.report(ActionPause, 0)
}

// Seeked implements media.Observer.
func (s *Sync) Seeked(position float64) {
	if s.ignoreNextSeek.CompareAndSwap(true, false) {
		s.log.Debug("suppressed seek echo", "position", position)
		return
	}
	s.report(ActionSeek, position)
}

// Rejected implements media.Observer. The surface will not report the
// rejected command, so its guard is disarmed.
func (s *Sync) Rejected(cmd string) {
	var guard *atomic.Bool
	switch Action(cmd) {
	case ActionPlay:
		guard = &s.ignoreNextPlay
	case ActionPause:
		guard = &s.ignoreNextPause
	case ActionSeek:
		guard = &s.ignoreNextSeek
	default:
		return
	}
	if guard.Swap(false) {
		s.log.Debug("surface rejected remote action", "action", cmd)
	}
}

func (s *Sync) report(action Action, t float64) {
	if err := s.HandleControl(action, Local, t); err != nil {
		s.log.Debug("control not sent", "action", action, "error", err)
	}
}

// Receive decodes and dispatches one frame from the peer. Malformed frames
// are logged and dropped.
func (s *Sync) Receive(data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		s.log.Warn("dropping frame", "error", err, "size", len(data))
		return err
	}

	switch msg.Kind {
	case KindControl:
		return s.HandleControl(msg.Action, Remote, msg.Time)
	case KindFile:
		s.mu.Lock()
		s.remoteFile = msg.Name
		s.mu.Unlock()
		if s.hooks.OnRemoteFile != nil {
			s.hooks.OnRemoteFile(msg.Name)
		}
	case KindChat:
		if s.hooks.OnChat != nil {
			s.hooks.OnChat(msg.Name, msg.Text)
		}
	}
	return nil
}

// AnnounceFile tells the peer which file is loaded locally.
func (s *Sync) AnnounceFile(name string) error {
	s.mu.Lock()
	s.localFile = name
	s.mu.Unlock()
	return s.send(FileMessage(name))
}

// LocalFile returns the last announced local file name.
func (s *Sync) LocalFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localFile
}

// RemoteFile returns the file name last announced by the peer.
func (s *Sync) RemoteFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteFile
}

func (s *Sync) send(m Message) error {
	if s.out == nil {
		return errors.New("no peer attached")
	}
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return s.out.Send(data)
}
