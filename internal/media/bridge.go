package media

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the page.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the page.
	pongWait = 60 * time.Second

	// Send pings to the page with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum event size accepted from the page.
	maxEventSize = 4 * 1024
)

//go:embed web/bridge.html
var page embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	// The bridge listens on loopback and only the local page connects.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Command is sent to the page.
type Command struct {
	Cmd    string   `json:"cmd"` // play|pause|seek|state
	Time   *float64 `json:"time,omitempty"`
	Paused *bool    `json:"paused,omitempty"`
}

// Event is reported by the page.
type Event struct {
	Event    string  `json:"event"` // played|paused|seeked|tick|rejected
	Position float64 `json:"position"`
	Paused   bool    `json:"paused,omitempty"`
	Cmd      string  `json:"cmd,omitempty"` // the rejected command
}

// Bridge is a Surface backed by a <video> element in a browser tab. The page
// is served by the bridge itself and talks to it over a websocket. The bridge
// keeps a mirror of the player state; while no page is attached the mirror
// acts as the player.
type Bridge struct {
	mu       sync.Mutex
	client   *bridgeClient
	obs      Observer
	paused   bool
	position float64
	updated  time.Time
	now      func() time.Time

	mediaPath string
	log       *slog.Logger
}

// NewBridge creates a paused bridge. mediaPath, when set, is served to the
// page as the video source.
func NewBridge(mediaPath string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		paused:    true,
		now:       time.Now,
		updated:   time.Now(),
		mediaPath: mediaPath,
		log:       log.With("component", "bridge"),
	}
}

// Handler serves the page, the media file and the websocket.
func (b *Bridge) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", b.servePage)
	r.Get("/media", b.serveMedia)
	r.Get("/ws", b.serveWs)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Bridge is healthy."))
	})
	return r
}

// ListenAndServe serves the bridge on addr until ctx is cancelled.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: b.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	b.log.Info("bridge listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.detach(nil)
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (b *Bridge) servePage(w http.ResponseWriter, r *http.Request) {
	html, err := page.ReadFile("web/bridge.html")
	if err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(html)
}

func (b *Bridge) serveMedia(w http.ResponseWriter, r *http.Request) {
	if b.mediaPath == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(b.mediaPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		http.Error(w, "stat failed", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}

func (b *Bridge) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("failed to upgrade connection", "error", err)
		return
	}

	c := &bridgeClient{bridge: b, conn: conn, send: make(chan Command, 64), done: make(chan struct{})}

	b.mu.Lock()
	old := b.client
	b.client = c
	// Hand the current state to the page; it applies it without reporting.
	pos, paused := b.positionLocked(), b.paused
	b.mu.Unlock()
	if old != nil {
		old.close()
	}
	c.push(Command{Cmd: "state", Time: &pos, Paused: &paused})

	go c.writePump()
	go c.readPump()
}

// Attached reports whether a page is connected.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil
}

func (b *Bridge) detach(c *bridgeClient) {
	b.mu.Lock()
	cur := b.client
	if cur == nil || (c != nil && cur != c) {
		b.mu.Unlock()
		return
	}
	b.position = b.positionLocked()
	b.updated = b.now()
	b.client = nil
	b.mu.Unlock()
	cur.close()
}

func (b *Bridge) SetObserver(o Observer) {
	b.mu.Lock()
	b.obs = o
	b.mu.Unlock()
}

func (b *Bridge) Play() {
	b.command(Command{Cmd: "play"}, func() (bool, func(Observer)) {
		if !b.paused {
			return false, nil
		}
		b.position = b.positionLocked()
		b.updated = b.now()
		b.paused = false
		return true, func(o Observer) { o.Played() }
	})
}

func (b *Bridge) Pause() {
	b.command(Command{Cmd: "pause"}, func() (bool, func(Observer)) {
		if b.paused {
			return false, nil
		}
		b.position = b.positionLocked()
		b.updated = b.now()
		b.paused = true
		return true, func(o Observer) { o.Paused() }
	})
}

func (b *Bridge) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	b.command(Command{Cmd: "seek", Time: &t}, func() (bool, func(Observer)) {
		b.position = t
		b.updated = b.now()
		return true, func(o Observer) { o.Seeked(t) }
	})
}

// command forwards cmd to the attached page, whose event will report the
// change. Without a page the mirror is updated directly by apply.
func (b *Bridge) command(cmd Command, apply func() (bool, func(Observer))) {
	b.mu.Lock()
	c := b.client
	if c != nil {
		if cmd.Cmd == "play" && !b.paused || cmd.Cmd == "pause" && b.paused {
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
		if !c.push(cmd) {
			b.reject(cmd.Cmd)
		}
		return
	}
	changed, notify := apply()
	obs := b.obs
	b.mu.Unlock()

	if changed && obs != nil && notify != nil {
		notify(obs)
	}
}

func (b *Bridge) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionLocked()
}

func (b *Bridge) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

func (b *Bridge) positionLocked() float64 {
	if b.paused {
		return b.position
	}
	return b.position + b.now().Sub(b.updated).Seconds()
}

func (b *Bridge) reject(cmd string) {
	b.mu.Lock()
	obs := b.obs
	b.mu.Unlock()
	if obs != nil {
		obs.Rejected(cmd)
	}
}

// handleEvent updates the mirror and notifies the observer.
func (b *Bridge) handleEvent(ev Event) {
	b.mu.Lock()
	b.position = ev.Position
	b.updated = b.now()
	var notify func(Observer)
	switch ev.Event {
	case "played":
		if b.paused {
			b.paused = false
			notify = func(o Observer) { o.Played() }
		}
	case "paused":
		if !b.paused {
			b.paused = true
			notify = func(o Observer) { o.Paused() }
		}
	case "seeked":
		pos := ev.Position
		notify = func(o Observer) { o.Seeked(pos) }
	case "tick":
		// A state change the page did not report on its own.
		if ev.Paused != b.paused {
			b.paused = ev.Paused
			if ev.Paused {
				notify = func(o Observer) { o.Paused() }
			} else {
				notify = func(o Observer) { o.Played() }
			}
		}
	case "rejected":
		b.paused = ev.Paused
		cmd := ev.Cmd
		notify = func(o Observer) { o.Rejected(cmd) }
	default:
		b.mu.Unlock()
		b.log.Debug("unknown bridge event", "event", ev.Event)
		return
	}
	obs := b.obs
	b.mu.Unlock()

	if obs != nil && notify != nil {
		notify(obs)
	}
}

// bridgeClient is one page connection.
type bridgeClient struct {
	bridge *Bridge
	conn   *websocket.Conn
	send   chan Command

	closeOnce sync.Once
	done      chan struct{}
}

// push queues cmd for the page. It reports false when cmd was dropped.
func (c *bridgeClient) push(cmd Command) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- cmd:
		return true
	default:
		c.bridge.log.Warn("bridge send buffer full, dropping command", "cmd", cmd.Cmd)
		return false
	}
}

func (c *bridgeClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump pumps events from the page to the bridge. It is the only reader
// of the connection.
func (c *bridgeClient) readPump() {
	defer func() {
		c.bridge.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxEventSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.bridge.log.Warn("bridge read failed", "error", err)
			}
			return
		}
		c.bridge.handleEvent(ev)
	}
}

// writePump pumps commands to the page. It is the only writer of the
// connection.
func (c *bridgeClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case cmd := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(cmd); err != nil {
				c.bridge.log.Warn("bridge write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
