package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/history"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/sync"
)

// ErrSyncInProgress is returned by TriggerSync while another run is active.
var ErrSyncInProgress = errors.New("sync already in progress")

// Syncer runs one reconciliation pass
type Syncer interface {
	Run(ctx context.Context) (*sync.Summary, error)
}

// StatsProvider reports cache statistics
type StatsProvider interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// HistoryProvider lists recorded runs
type HistoryProvider interface {
	Recent(ctx context.Context, limit int) ([]history.SyncRun, error)
}

// Deps are the components the server exposes. History and Health are optional.
type Deps struct {
	Syncer  Syncer
	Stats   StatsProvider
	History HistoryProvider
	Health  func() error
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	deps   Deps
	logger *logger.Logger

	runMu   gosync.Mutex
	lastRun *sync.Summary
	lastMu  gosync.RWMutex
}

// New creates a new HTTP server listening on addr
func New(addr string, deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	s := &Server{
		server: &http.Server{Addr: addr},
		deps:   deps,
		logger: log.With(map[string]interface{}{"component": "server"}),
	}

	s.server.Handler = s.Handler()
	s.server.ReadTimeout = 10 * time.Second
	s.server.WriteTimeout = 5 * time.Minute
	s.server.IdleTimeout = 120 * time.Second
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthCheck)
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/history", s.handleHistory)
	return logger.HTTPMiddleware(s.logger, mux)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.server.Addr,
	})

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// TriggerSync runs one sync unless another one is active. It is shared by
// the HTTP endpoint and the periodic scheduler.
func (s *Server) TriggerSync(ctx context.Context) (*sync.Summary, error) {
	if !s.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.runMu.Unlock()

	summary, err := s.deps.Syncer.Run(ctx)
	if err != nil {
		return nil, err
	}
	s.lastMu.Lock()
	s.lastRun = summary
	s.lastMu.Unlock()
	return summary, nil
}

// LastRun returns the summary of the most recent successful run, if any.
func (s *Server) LastRun() *sync.Summary {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastRun
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealthCheck handles health check requests
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Health != nil {
		if err := s.deps.Health(); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	resp := map[string]interface{}{"status": "ok"}
	if last := s.LastRun(); last != nil {
		resp["last_sync"] = last.FinishedAt
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSync runs a sync and responds with its summary
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.TriggerSync(r.Context())
	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.writeError(w, http.StatusConflict, err)
	case err != nil:
		s.logger.Error("Sync failed", map[string]interface{}{"error": err.Error()})
		s.writeError(w, http.StatusBadGateway, err)
	default:
		s.writeJSON(w, http.StatusOK, summary)
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.deps.Stats.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.History == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	runs, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}
