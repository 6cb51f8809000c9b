package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fitrunner/internal/suiteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *suiteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Suite runs. GET keeps FitNesse-style links working; POST is for clients.
	r.Get("/suites/*", h.RunSuite)
	r.Post("/suites/*", h.RunSuite)

	// Dry-run resolution.
	r.Get("/plan/*", h.Plan)

	// History.
	r.Get("/history", h.HistoryPages)
	r.Get("/history/*", h.History)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
