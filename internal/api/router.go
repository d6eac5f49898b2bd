package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/tatami/internal/service"
	"github.com/starford/tatami/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *service.Service, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/families", h.ListFamilies)

	r.Route("/{family}", func(r chi.Router) {
		// Records CRUD.
		r.Get("/records", h.ListRecords)
		r.Post("/records", h.CreateRecord)
		r.Get("/records/{id}", h.GetRecord)
		r.Put("/records/{id}", h.UpdateRecord)
		r.Delete("/records/{id}", h.DeleteRecord)

		// Reconciliation.
		r.Post("/clean", h.Clean)
	})

	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
