package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notecommits/internal/spotlight"
	"github.com/starford/notecommits/internal/tracker"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(tr *tracker.Tracker, spot *spotlight.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(tr, spot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Project registry.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.TrackProject)
	r.Delete("/projects/*", h.UntrackProject)

	// Aggregates and blocks.
	r.Get("/activity", h.Activity)
	r.Post("/render/{kind}", h.Render)

	// Settings and ignore lists.
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.PatchSettings)
	r.Get("/ignore", h.ListIgnored)
	r.Post("/ignore", h.Ignore)
	r.Delete("/ignore/*", h.Unignore)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
