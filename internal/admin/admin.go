// Package admin serves the small HTTP side channel both binaries expose next
// to the sort protocol: liveness, Prometheus metrics and a JSON snapshot of
// runtime state.
//
// Routes:
//
//	GET /health   200 {"status":"ok"}
//	GET /metrics  Prometheus text exposition
//	GET /info     JSON returned by the caller's info function
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/distsort/internal/metrics"
)

const (
	contentTypeJSON   = "application/json"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// InfoFunc returns a JSON-encodable snapshot for GET /info.
type InfoFunc func() any

// NewRouter builds the admin routes. A nil info function serves an empty
// object.
func NewRouter(g prometheus.Gatherer, info InfoFunc) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(g))
	r.Get("/info", func(w http.ResponseWriter, _ *http.Request) {
		var body any = struct{}{}
		if info != nil {
			body = info()
		}
		writeJSON(w, http.StatusOK, body)
	})
	return r
}

// Server is a running admin listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start listens on addr and serves h in the background. Listen errors are
// returned synchronously; serve errors after that are logged.
func Start(addr string, h http.Handler, log *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "admin listen %s", addr)
	}
	s := &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("admin: serve failed", "addr", addr, "err", err)
		}
	}()
	log.Info("admin: listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the bound address, useful when addr had port 0.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("admin: encode response", "err", err)
	}
}
