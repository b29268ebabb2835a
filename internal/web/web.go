package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"remindcal/internal/alert"
	appLog "remindcal/internal/log"
	"remindcal/internal/reminder"
)

// Permissions reads and requests the platform alert permission.
// *alert.Dispatcher satisfies it.
type Permissions interface {
	Permission(ctx context.Context) alert.Permission
	RequestPermission(ctx context.Context) (alert.Permission, error)
}

// Server is the web view: a JSON API over the scheduler, the live alert
// stream, and the embedded page that renders both.
type Server struct {
	sched *reminder.Scheduler
	perms Permissions
	hub   *Hub
	mux   *http.ServeMux

	// permissionTimeout bounds the permission request made after the
	// first reminder is added.
	permissionTimeout time.Duration
	requesting        atomic.Bool
}

// embeddedStatic contains the single-page UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server. perms may be nil, in which case the
// platform alert is reported as denied.
func NewServer(sched *reminder.Scheduler, perms Permissions, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub(sched.Location())
	}
	s := &Server{
		sched:             sched,
		perms:             perms,
		hub:               hub,
		mux:               http.NewServeMux(),
		permissionTimeout: 30 * time.Second,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/events.ics", s.handleExport)
	s.mux.HandleFunc("GET /api/time", s.handleTime)
	s.mux.HandleFunc("GET /api/permission", s.handlePermission)
	s.mux.HandleFunc("POST /api/permission", s.handleRequestPermission)
	s.mux.HandleFunc("GET /api/alerts", s.hub.ServeHTTP)

	// Everything else is the embedded page.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer returns an http.Handler that serves the embedded UI from
// internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown API paths get a 404, never HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// StartServer serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func StartServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
