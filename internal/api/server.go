package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/grid"
	"github.com/AaronLay10/SignalGrid/internal/metrics"
	"github.com/AaronLay10/SignalGrid/internal/node"
	"github.com/AaronLay10/SignalGrid/internal/version"
)

// Engine is the grid surface served over HTTP.
type Engine interface {
	ID() string
	Tick() uint64
	Snapshot() []grid.NodeView
	Node(p geom.Pos) (grid.NodeView, error)
	Place(typeName string, p geom.Pos, facing geom.Direction, params node.Params) (grid.NodeView, error)
	Remove(p geom.Pos) ([]node.Link, error)
	Activate(p geom.Pos) (bool, error)
	Cycle(p geom.Pos, double bool) (node.CycleResult, error)
	Reset(p geom.Pos) error
	SetPulseTime(p geom.Pos, items int) (bool, error)
	SetTint(p geom.Pos, color int) error
	Touch(p geom.Pos, x, y float64) (bool, error)
	SecondaryClick(p geom.Pos) (bool, error)
	LinkTo(src, target geom.Pos, mode node.LinkMode) (node.AssignResult, error)
	Unlink(p geom.Pos, drop bool) ([]node.Link, error)
	Environment() grid.Environment
	UpdateWorld(u grid.WorldUpdate) grid.Environment
	Save(ctx context.Context) (int, error)
	Pause()
	Resume()
	Paused() bool
}

// EventHistory reads persisted events, oldest first.
type EventHistory interface {
	History(ctx context.Context, limit int) ([]events.Event, error)
}

// Server serves the grid API.
type Server struct {
	engine  Engine
	metrics *metrics.GridCollector
	logger  *slog.Logger
	history EventHistory
}

// NewServer creates a server. metrics may be nil.
func NewServer(engine Engine, m *metrics.GridCollector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, metrics: m, logger: logger}
}

// SetHistory enables /events/history. Without it the route answers 503.
func (s *Server) SetHistory(h EventHistory) { s.history = h }

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(roleMiddleware(RoleAdmin, RoleOperator))
		r.Get("/", uiHandler)
		r.Get("/events", eventsHandler)
		r.Get("/events/history", s.historyHandler)
		r.Get("/ws/events", wsEventsHandler)
		r.Get("/types", typesHandler)
		r.Get("/world", s.getWorld)
		r.Get("/nodes", s.listNodes)
		r.Get("/nodes/{pos}", s.getNode)
		r.Post("/nodes/{pos}/activate", s.activate)
		r.Post("/nodes/{pos}/cycle", s.cycle)
		r.Post("/nodes/{pos}/reset", s.reset)
		r.Post("/nodes/{pos}/secondary", s.secondary)
		r.Post("/nodes/{pos}/pulse-time", s.pulseTime)
		r.Post("/nodes/{pos}/tint", s.tint)
		r.Post("/nodes/{pos}/touch", s.touch)
		r.Post("/nodes/{pos}/links", s.link)
		r.Delete("/nodes/{pos}/links", s.unlink)
	})

	r.Group(func(r chi.Router) {
		r.Use(roleMiddleware(RoleAdmin))
		r.Post("/nodes", s.place)
		r.Delete("/nodes/{pos}", s.remove)
		r.Post("/world", s.updateWorld)
		r.Post("/grid/save", s.save)
		r.Post("/grid/pause", s.pause)
		r.Post("/grid/resume", s.resume)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. TLS is used when configured.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr, "tls", tlsCfg != nil, "auth", IsAuthEnabled())
		if tlsCfg != nil {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}
	events.CloseAllSubscribers()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "gridd",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, events.RecentEvents(limit))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "no event store configured")
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	evs, err := s.history.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("event history query failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func typesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, node.Types())
}

// Response is the envelope of operator command replies.
type Response struct {
	OK     bool        `json:"ok"`
	Result string      `json:"result,omitempty"`
	Node   interface{} `json:"node,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{OK: false, Error: msg})
}

// statusFor maps grid errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, grid.ErrNoNode):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrOccupied):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
