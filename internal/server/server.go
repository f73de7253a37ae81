// Package server exposes the retention engine over a chi HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

// Server is the engram HTTP API server.
type Server struct {
	eng     *engine.Engine
	sched   *engine.Scheduler
	log     *slog.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over the engine and scheduler. A nil logger
// discards output.
func New(eng *engine.Engine, sched *engine.Scheduler, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		eng:     eng,
		sched:   sched,
		log:     log,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)

		r.Post("/memories", s.handleIngest)
		r.Post("/search", s.handleSearch)

		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRecord)
			r.Get("/explain", s.handleExplain)
			r.Post("/freeze", s.handleFreeze)
			r.Post("/unfreeze", s.handleUnfreeze)
			r.Post("/sensitivity", s.handleSensitivity)
			r.Post("/negate", s.handleNegate)
			r.Post("/reinforce", s.handleReinforce)
			r.Post("/modality", s.handleModality)
			r.Delete("/", s.handleDelete)
		})

		r.Post("/maintenance/{pass}", s.handleMaintenance)
		r.Get("/metrics", s.handleMetrics)

		r.Get("/owners/{device}/{user}/export", s.handleExport)
		r.Post("/owners/import", s.handleImport)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    time.Since(s.started).Seconds(),
		"records":   s.eng.Store().Len(),
		"scheduler": s.sched != nil && s.sched.Running(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps engine and store errors onto HTTP statuses: unknown ids are
// 404, validation failures 400, collaborator outages 502.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var collab *engine.CollaboratorError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid),
		errors.Is(err, store.ErrDuplicateID),
		errors.Is(err, engine.ErrUnknownTrigger),
		errors.Is(err, engine.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &collab):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
