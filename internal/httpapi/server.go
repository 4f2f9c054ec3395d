// Package httpapi serves the latest fabric snapshot over HTTP while a run is
// in progress.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/bus_fabric_sim/config"
	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/internal/control"
)

// Server holds the most recently published snapshot. The simulation loop
// publishes; handlers only read.
type Server struct {
	mu       sync.RWMutex
	latest   *fabric.Snapshot
	gatherer prometheus.Gatherer
	commands *control.Queue
	log      *slog.Logger
}

// New creates a server. gatherer may be nil, which disables /metrics.
func New(gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{gatherer: gatherer, log: log}
}

// WithControl enables POST /control, feeding commands into q.
func (s *Server) WithControl(q *control.Queue) *Server {
	s.commands = q
	return s
}

// Publish replaces the served snapshot.
func (s *Server) Publish(snap fabric.Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
}

func (s *Server) snapshot() *fabric.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/masters/{id}", s.handleMaster)
	r.Get("/slaves/{id}", s.handleSlave)
	r.Get("/presets", s.handlePresets)
	if s.commands != nil {
		r.Post("/control", s.handleControl)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, snap)
}

func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot available", http.StatusServiceUnavailable)
		return
	}
	id, ok := parseIndex(w, r, len(snap.Masters))
	if !ok {
		return
	}
	s.writeJSON(w, snap.Masters[id])
}

func (s *Server) handleSlave(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "no snapshot available", http.StatusServiceUnavailable)
		return
	}
	id, ok := parseIndex(w, r, len(snap.Slaves))
	if !ok {
		return
	}
	s.writeJSON(w, snap.Slaves[id])
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, config.Presets())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var cmd control.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := cmd.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.commands.Enqueue(cmd) {
		http.Error(w, "command queue full", http.StatusServiceUnavailable)
		return
	}
	s.log.Debug("control command queued", "type", string(cmd.Type), "steps", cmd.Steps)
	w.WriteHeader(http.StatusAccepted)
}

func parseIndex(w http.ResponseWriter, r *http.Request, n int) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	if id < 0 || id >= n {
		http.Error(w, "not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", "error", err)
	}
}
