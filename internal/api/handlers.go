package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arvidh/inkwell/internal/apperr"
	"github.com/arvidh/inkwell/internal/models"
	"github.com/arvidh/inkwell/internal/noteservice"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *noteservice.Service
	session *storagemap.Session
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, session *storagemap.Session) *Handler {
	return &Handler{svc: svc, session: session}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("revision mismatch"))
	case errors.Is(err, apperr.ErrDefaultFolder):
		writeJSON(w, http.StatusBadRequest, errorBody("default folder is protected"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ifMatchRev extracts the If-Match revision, stripping standard ETag quotes.
func ifMatchRev(r *http.Request) string {
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

// ListRepositories handles GET /api/repos.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.ListRepositories(r.Context())
	if err != nil {
		writeError(w, "list repositories", err)
		return
	}
	writeJSON(w, http.StatusOK, RepositoriesResponse{Repositories: names})
}

// CreateRepository handles POST /api/repos.
func (h *Handler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	var req CreateRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if err := h.svc.CreateRepository(r.Context(), req.Name); err != nil {
		writeError(w, "create repository", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// GetIndex handles GET /api/repos/{repo}/index.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	idx, ok := h.session.Repo(repo)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, indexResponse(idx))
}

// GetNote handles GET /api/repos/{repo}/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	id := chi.URLParam(r, "id")
	note, err := h.svc.GetNote(r.Context(), repo, id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/repos/{repo}/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	repo := chi.URLParam(r, "repo")

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), repo, noteservice.CreateNoteParams{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Folder:  req.Folder,
	})
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/repos/{repo}/notes/{id} with optimistic
// concurrency via the If-Match header.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	repo := chi.URLParam(r, "repo")
	id := chi.URLParam(r, "id")

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.UpdateNote(r.Context(), repo, id, noteservice.NotePatch{
		Rev:     ifMatchRev(r),
		Title:   req.Title,
		Preview: req.Preview,
		Content: req.Content,
		Tags:    req.Tags,
		Folder:  req.Folder,
	})
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/repos/{repo}/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), repo, id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertFolder handles PUT /api/repos/{repo}/folders.
func (h *Handler) UpsertFolder(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	var req UpsertFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	folder, err := h.svc.UpsertFolder(r.Context(), repo, req.Path)
	if err != nil {
		writeError(w, "upsert folder", err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolder handles DELETE /api/repos/{repo}/folders?path=...
// Folder paths contain slashes, so the path travels as a query parameter.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	if err := h.svc.DeleteFolder(r.Context(), repo, path); err != nil {
		writeError(w, "delete folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameFolder handles POST /api/repos/{repo}/folders/rename.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	if err := h.svc.RenameFolder(r.Context(), repo, req.From, req.To); err != nil {
		writeError(w, "rename folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameTag handles POST /api/repos/{repo}/tags/rename.
func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	if err := h.svc.RenameTag(r.Context(), repo, req.From, req.To); err != nil {
		writeError(w, "rename tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTag handles DELETE /api/repos/{repo}/tags/{tag}.
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	tag := chi.URLParam(r, "tag")
	if err := h.svc.DeleteTag(r.Context(), repo, tag); err != nil {
		writeError(w, "delete tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/repos/{repo}/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "repo")
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.SearchNotes(r.Context(), repo, q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
