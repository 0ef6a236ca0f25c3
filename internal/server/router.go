// Package server assembles the HTTP surface of the relay.
package server

import (
	"log/slog"
	"net/http"

	"media-relay/internal/media"
	"media-relay/internal/platform/logger"
	"media-relay/internal/platform/metrics"
	"media-relay/internal/platform/respond"
	"media-relay/internal/session"
	"media-relay/internal/watch"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the components served by the router. Metrics and Watch may be nil.
type Deps struct {
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Sessions *session.Service
	Media    *media.Handler
	Watch    *watch.SocketHandler
}

// NewRouter returns the chi router for the relay.
func NewRouter(d Deps) chi.Router {
	sessions := session.NewHandler(d.Sessions, d.Log, d.Metrics)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(d.Log))
	if d.Metrics != nil {
		r.Use(metrics.RequestMiddleware(d.Metrics))
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			d.Metrics.Handler(func() { d.Metrics.SetActiveSessions(d.Sessions.ActiveSessions()) }).ServeHTTP(w, r)
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/control", sessions.Control)
	r.Post("/update-url", sessions.UpdateURL)
	r.Get("/current-url/{session_id}", sessions.CurrentURL)
	if d.Watch != nil {
		r.Get("/sessions/{session_id}/ws", d.Watch.Watch)
	}

	r.Get("/resolve", d.Media.Resolve)

	return r
}
