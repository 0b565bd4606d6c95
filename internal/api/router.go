package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arvidh/inkwell/internal/noteservice"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, session *storagemap.Session, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, session)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Repositories.
	r.Get("/repos", h.ListRepositories)
	r.Post("/repos", h.CreateRepository)
	r.Get("/repos/{repo}/index", h.GetIndex)

	// Notes CRUD.
	r.Post("/repos/{repo}/notes", h.CreateNote)
	r.Get("/repos/{repo}/notes/{id}", h.GetNote)
	r.Put("/repos/{repo}/notes/{id}", h.UpdateNote)
	r.Delete("/repos/{repo}/notes/{id}", h.DeleteNote)

	// Folders.
	r.Put("/repos/{repo}/folders", h.UpsertFolder)
	r.Delete("/repos/{repo}/folders", h.DeleteFolder)
	r.Post("/repos/{repo}/folders/rename", h.RenameFolder)

	// Tags.
	r.Post("/repos/{repo}/tags/rename", h.RenameTag)
	r.Delete("/repos/{repo}/tags/{tag}", h.DeleteTag)

	// Search.
	r.Get("/repos/{repo}/search", h.Search)

	// SSE mutation feed (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
