// Package server exposes the live session over HTTP for overlays and remote displays.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/August13742/Homebrew-Karaoke/logging"
	"github.com/August13742/Homebrew-Karaoke/session"
	"github.com/August13742/Homebrew-Karaoke/store"
	"github.com/August13742/Homebrew-Karaoke/timeline"
)

// SnapshotSource is what the server reads on every state request.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// History lists finished sessions.
type History interface {
	List(ctx context.Context, song string, limit int) ([]store.Record, error)
}

// Server serves the JSON API.
type Server struct {
	source   SnapshotSource
	timeline *timeline.Timeline
	history  History
	origins  []string
	logger   logging.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory enables the /api/history endpoint.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithAllowedOrigins restricts CORS; the default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithLogger sets the request logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server reading from source.
func New(source SnapshotSource, tl *timeline.Timeline, opts ...Option) *Server {
	s := &Server{
		source:   source,
		timeline: tl,
		origins:  []string{"*"},
		logger:   logging.WithFields(logging.Fields{"component": "server"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/timeline", s.handleTimeline).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Snapshot())
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	notes := []timeline.TargetNote{}
	if s.timeline != nil {
		notes = s.timeline.Notes()
	}
	s.writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history is not enabled", http.StatusNotFound)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.history.List(r.Context(), r.URL.Query().Get("song"), limit)
	if err != nil {
		s.logger.Error(err, "listing history")
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", logging.Fields{"error": err.Error()})
	}
}
