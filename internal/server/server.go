// Package server exposes the catalog and live playback over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/metrics"
	"github.com/verte-zerg/passplay/internal/model"
	"github.com/verte-zerg/passplay/internal/playback"
)

const shutdownTimeout = 10 * time.Second

// Server serves the problem catalog and playback sessions.
type Server struct {
	cat            *catalog.Catalog
	logger         *slog.Logger
	pause          time.Duration
	clock          playback.Clock
	originPatterns []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPause sets the dwell time between passes for playback sessions.
func WithPause(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// WithClock replaces the real clock used by playback sessions.
func WithClock(c playback.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithOriginPatterns sets the allowed WebSocket origins.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// New returns a server for cat.
func New(cat *catalog.Catalog, opts ...Option) *Server {
	s := &Server{
		cat:            cat,
		logger:         slog.Default(),
		pause:          playback.DefaultPause,
		originPatterns: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api/problems", func(r chi.Router) {
		r.Get("/", s.handleProblems)
		r.Get("/{key}", s.handleProblem)
		r.Get("/{key}/series", s.handleSeries)
	})
	r.Get("/ws/playback", s.handlePlayback)
	return r
}

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", addr, "problems", s.cat.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

type problemSummary struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Passes      int    `json:"passes"`
}

type passView struct {
	Index    int           `json:"index"`
	Label    string        `json:"label"`
	Output   string        `json:"output"`
	Critique string        `json:"critique"`
	Metrics  model.Metrics `json:"metrics"`
	Change   string        `json:"change,omitempty"`
	Insight  string        `json:"insight"`
}

type problemView struct {
	problemSummary
	Timeline []passView `json:"timeline"`
}

type seriesView struct {
	Key    string       `json:"key"`
	Passes int          `json:"passes"`
	Series model.Series `json:"series"`
}

func (s *Server) handleProblems(w http.ResponseWriter, _ *http.Request) {
	problems := s.cat.Problems()
	out := make([]problemSummary, 0, len(problems))
	for _, p := range problems {
		out = append(out, summarize(p))
	}
	JSON(w, http.StatusOK, out)
}

func (s *Server) handleProblem(w http.ResponseWriter, r *http.Request) {
	p, ok := s.cat.Problem(chi.URLParam(r, "key"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown problem")
		return
	}
	view := problemView{problemSummary: summarize(p)}
	for i := range p.Passes {
		pass := p.Passes[i]
		m, err := metrics.FormatMetrics(&pass)
		if err != nil {
			Error(w, http.StatusInternalServerError, "invalid pass")
			return
		}
		pv := passView{
			Index:    i,
			Label:    metrics.PassLabel(i, len(p.Passes)),
			Output:   pass.Output,
			Critique: pass.Critique,
			Metrics:  m,
			Insight:  metrics.Insight(i),
		}
		if i > 0 {
			pv.Change = metrics.DescribeChange(p.Passes[i-1], pass)
		}
		view.Timeline = append(view.Timeline, pv)
	}
	JSON(w, http.StatusOK, view)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	p, ok := s.cat.Problem(chi.URLParam(r, "key"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown problem")
		return
	}
	n, err := intParam(r, "passes", len(p.Passes))
	if err != nil || n < 1 {
		Error(w, http.StatusBadRequest, "passes must be a positive integer")
		return
	}
	series := metrics.MetricHistory(p, n)
	JSON(w, http.StatusOK, seriesView{Key: p.Key, Passes: series.Len(), Series: series})
}

func summarize(p model.Problem) problemSummary {
	return problemSummary{
		Key:         p.Key,
		Title:       p.Title,
		Description: p.Description,
		Passes:      len(p.Passes),
	}
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
