// Package server exposes the room mailbox and the chat archive over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BioHazard786/SyncPlayer/internal/chat"
	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/mailbox"
)

// Bodies are small JSON documents; SDP fits comfortably.
const maxBodySize = 64 * 1024

type Server struct {
	cfg     *config.Server
	store   mailbox.Store
	history *chat.History
	log     *slog.Logger
	now     func() time.Time
}

func New(cfg *config.Server, store mailbox.Store, history *chat.History, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if history == nil {
		history = chat.NewHistory(cfg.Chat.HistoryLimit)
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		history: history,
		log:     log,
		now:     time.Now,
	}
}

// Handler builds the router. The room routes are served both at /room and
// at /api/room.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Timeout(s.cfg.HTTP.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/room/{roomID}", s.roomRoutes)
	r.Route("/api", func(api chi.Router) {
		api.Route("/room/{roomID}", s.roomRoutes)
		api.Route("/chat", func(cr chi.Router) {
			cr.Post("/send", s.sendChat)
			cr.Get("/get", s.getChat)
		})
	})

	return r
}

func (s *Server) roomRoutes(r chi.Router) {
	r.Delete("/", s.clearRoom)
	r.Post("/offer", s.postOffer)
	r.Get("/offer", s.getOffer)
	r.Post("/answer", s.postAnswer)
	r.Get("/answer", s.getAnswer)
	r.Post("/candidate", s.postCandidate)
	r.Get("/candidates", s.getCandidates)
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// retention janitor runs alongside.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      s.cfg.HTTP.Timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		s.janitor(janitorCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listen", "addr", ln.Addr().String(), "store", s.cfg.Store.Backend)
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.log.Info("shutting down")
	case serveErr = <-errCh:
		s.log.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	stopJanitor()
	<-janitorDone
	s.log.Info("stopped")
	return serveErr
}

// janitor applies the retention policy to stores that do not expire rooms
// on their own, and to the chat archive.
func (s *Server) janitor(ctx context.Context) {
	ttl := s.cfg.Store.Retention()
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.Store.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, ttl)
		}
	}
}

func (s *Server) sweep(ctx context.Context, ttl time.Duration) {
	cutoff := s.now().Add(-ttl)
	rooms := 0
	if sw, ok := s.store.(mailbox.Sweeper); ok {
		n, err := sw.Sweep(ctx, cutoff)
		if err != nil {
			s.log.Warn("room sweep failed", "error", err)
		}
		rooms = n
	}
	chats := s.history.Sweep(cutoff)
	if rooms > 0 || chats > 0 {
		s.log.Info("swept idle rooms", "rooms", rooms, "chats", chats)
	}
}
