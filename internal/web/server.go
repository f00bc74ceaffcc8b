// Package web serves the overlay UI and speaks the boundary protocol to it
// over a websocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/clayshell/clayshell/internal/host"
	"github.com/clayshell/clayshell/internal/logging"
	"github.com/clayshell/clayshell/internal/overlay"
)

var webLog = logging.ForComponent(logging.CompWeb)

// Config defines runtime options for the UI server.
type Config struct {
	ListenAddr string
	Overlay    *overlay.Overlay
	Host       *host.Host
}

// Server hosts the overlay files and the /ws boundary endpoint. It also
// implements host.UI by broadcasting push signals to every connected
// client.
type Server struct {
	cfg        Config
	httpServer *http.Server

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

// NewServer creates the UI server and registers it as the host's push
// sink.
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, clients: make(map[*wsClient]struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleOverlayFile)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withRecover(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	cfg.Host.SetUI(s)
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Run serves until ctx is cancelled, then drains with a short timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// handleOverlayFile serves UI files from the overlay with caching
// disabled, so a forced reload always re-fetches current overlay content.
// The bridge file is the exception: it is always served from the embedded
// bundle, never from the overlay. The bridge is the privilege boundary and
// the overlay copy is untrusted by definition.
func (s *Server) handleOverlayFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" || name == "." {
		name = "index.html"
	}
	if strings.Contains(name, "..") || hasHiddenSegment(name) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-store")

	if name == overlay.BridgeFile {
		body, err := overlay.BundleBridge()
		if err != nil {
			webLog.Error("bridge_unavailable", slog.String("error", err.Error()))
			http.Error(w, "bridge unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write(body)
		return
	}

	http.ServeFile(w, r, s.cfg.Overlay.Path(name))
}

// hasHiddenSegment rejects dotfiles (digest sidecar, guidance stamp).
func hasHiddenSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":        true,
		"hotReload": s.cfg.Host.WatcherActive(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

// withRecover keeps a panicking handler from taking down the host process.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				webLog.Error("handler_panic", slog.Any("panic", rec), slog.String("path", r.URL.Path))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
