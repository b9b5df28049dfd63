package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/songbook/internal/songservice"
)

// EventSink serves the SSE stream and receives API-side song events.
type EventSink interface {
	http.Handler
	Notifier
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group and
// told about songs transposed through the API.
func NewRouter(svc *songservice.Service, authEnabled bool, token string, events EventSink) chi.Router {
	var notify Notifier
	if events != nil {
		notify = events
	}
	h := NewHandler(svc, notify)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Songs CRUD.
	r.Get("/songs", h.ListSongs)
	r.Post("/songs", h.CreateSong)
	r.Get("/songs/*", h.GetSong)
	r.Put("/songs/*", h.UpdateSong)
	r.Delete("/songs/*", h.DeleteSong)

	// Transposition.
	r.Post("/transpose", h.Transpose)
	r.Post("/transpose/*", h.SaveTransposed)
	r.Post("/key", h.DetectKey)
	r.Get("/reference-table", h.ReferenceTable)

	// Chord inventory.
	r.Get("/chords", h.Chords)
	r.Get("/chords/{chord}/songs", h.ChordSongs)

	// Search.
	r.Get("/search", h.Search)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
