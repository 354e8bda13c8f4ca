package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	seekStep     = 5.0
	visibleLines = 8
	refreshEvery = 500 * time.Millisecond
)

// Player is the media surface the keys drive.
type Player interface {
	Play()
	Pause()
	Seek(t float64)
	Position() float64
	Paused() bool
}

// ChatLine is one line in the chat pane.
type ChatLine struct {
	Name   string
	Text   string
	Local  bool
	System bool
}

// SessionOptions configures the session screen.
type SessionOptions struct {
	RoomID    string
	Role      string
	LocalFile string
	Invite    *RoomInfo
	Player    Player
	SendChat  func(text string) error
}

type (
	stateMsg      string
	chatMsg       ChatLine
	remoteFileMsg string
	peerMsg       string
	closedMsg     struct{ reason string }
	refreshMsg    time.Time
)

// SessionModel is the bubbletea model of a running session.
type SessionModel struct {
	opts SessionOptions

	state      string
	active     bool
	remoteFile string
	peer       string
	lines      []ChatLine

	spinner  spinner.Model
	input    textinput.Model
	chatting bool
	width    int
	quitting bool
	reason   string

	updates <-chan tea.Msg
}

func NewSessionModel(opts SessionOptions) *SessionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	in := textinput.New()
	in.Placeholder = "say something"
	in.Prompt = IconChat + " "
	in.CharLimit = 500

	return &SessionModel{
		opts:    opts,
		state:   "waiting for peer",
		active:  true,
		spinner: s,
		input:   in,
		width:   80,
	}
}

func (m *SessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh(), m.listen())
}

// listen waits for the next queued update. It is re-armed after each one.
func (m *SessionModel) listen() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		return queued{<-m.updates}
	}
}

type queued struct{ msg tea.Msg }

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.chatting {
			return m.updateChat(msg)
		}
		return m.updatePlayer(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-6)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case queued:
		model, cmd := m.Update(msg.msg)
		return model, tea.Batch(cmd, m.listen())

	case refreshMsg:
		if m.quitting {
			return m, nil
		}
		return m, refresh()

	case stateMsg:
		m.state = string(msg)

	case chatMsg:
		m.lines = append(m.lines, ChatLine(msg))

	case remoteFileMsg:
		m.remoteFile = string(msg)

	case peerMsg:
		m.peer = string(msg)

	case closedMsg:
		m.active = false
		m.reason = msg.reason
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *SessionModel) updatePlayer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.opts.Player
	if msg.Type == tea.KeySpace || msg.String() == " " {
		return m, func() tea.Msg {
			if p.Paused() {
				p.Play()
			} else {
				p.Pause()
			}
			return nil
		}
	}
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "left", "h":
		return m, func() tea.Msg { p.Seek(max(0, p.Position()-seekStep)); return nil }
	case "right", "l":
		return m, func() tea.Msg { p.Seek(p.Position() + seekStep); return nil }
	case "tab", "enter", "c":
		if m.opts.SendChat != nil {
			m.chatting = true
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *SessionModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyTab:
		m.chatting = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		send := m.opts.SendChat
		return m, func() tea.Msg {
			if err := send(text); err != nil {
				return chatMsg{System: true, Text: "not sent: " + err.Error()}
			}
			return nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *SessionModel) View() string {
	if m.quitting && m.reason == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("SyncPlayer") + "\n\n")

	if m.opts.Invite != nil && m.peer == "" && m.active {
		b.WriteString(m.opts.Invite.View() + "\n\n")
	}

	indicator := m.spinner.View()
	if !m.active {
		indicator = IconInfo
	}
	b.WriteString(fmt.Sprintf("%s %s\n", indicator, m.state))

	st := Status{
		Room:       m.opts.RoomID,
		Role:       m.opts.Role,
		State:      m.state,
		Paused:     true,
		LocalFile:  m.opts.LocalFile,
		RemoteFile: m.remoteFile,
		Peer:       m.peer,
	}
	if p := m.opts.Player; p != nil {
		st.Position = p.Position()
		st.Paused = p.Paused()
	}
	b.WriteString(StatusView(st) + "\n")

	if len(m.lines) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Chat") + "\n")
		start := max(0, len(m.lines)-visibleLines)
		for _, l := range m.lines[start:] {
			b.WriteString(renderLine(l) + "\n")
		}
	}

	if m.reason != "" {
		b.WriteString("\n" + WarningStyle.Render(m.reason) + "\n")
		return b.String()
	}

	if m.chatting {
		b.WriteString("\n" + m.input.View() + "\n")
		b.WriteString(FooterStyle.Render("enter send • esc back to player"))
	} else {
		help := "space play/pause • ←/→ seek 5s • q quit"
		if m.opts.SendChat != nil {
			help = "space play/pause • ←/→ seek 5s • tab chat • q quit"
		}
		b.WriteString(FooterStyle.Render(help))
	}
	return b.String()
}

func renderLine(l ChatLine) string {
	switch {
	case l.System:
		return MutedStyle.Render("  " + l.Text)
	case l.Local:
		return "  " + LocalNameStyle.Render(l.Name) + ": " + l.Text
	default:
		return "  " + RemoteNameStyle.Render(l.Name) + ": " + l.Text
	}
}

// SessionUI runs a SessionModel and lets other goroutines feed it. Updates
// are queued, so callers never wait for the program loop to start.
type SessionUI struct {
	program *tea.Program
	model   *SessionModel
	updates chan tea.Msg
	done    chan struct{}
}

func NewSessionUI(opts SessionOptions, teaOpts ...tea.ProgramOption) *SessionUI {
	updates := make(chan tea.Msg, 256)
	m := NewSessionModel(opts)
	m.updates = updates
	return &SessionUI{
		model:   m,
		program: tea.NewProgram(m, teaOpts...),
		updates: updates,
		done:    make(chan struct{}),
	}
}

// Run blocks until the user quits or Close is called.
func (u *SessionUI) Run() error {
	defer close(u.done)
	_, err := u.program.Run()
	return err
}

func (u *SessionUI) push(msg tea.Msg) {
	select {
	case u.updates <- msg:
	case <-u.done:
	}
}

func (u *SessionUI) SetState(state string) { u.push(stateMsg(state)) }

func (u *SessionUI) AddChat(l ChatLine) { u.push(chatMsg(l)) }

func (u *SessionUI) SetRemoteFile(name string) { u.push(remoteFileMsg(name)) }

func (u *SessionUI) SetPeer(name string) { u.push(peerMsg(name)) }

// Close ends the UI, leaving reason on screen.
func (u *SessionUI) Close(reason string) { u.push(closedMsg{reason: reason}) }

// Quit ends the UI without a message.
func (u *SessionUI) Quit() { u.program.Quit() }
