package api

import (
	"sort"

	"github.com/arvidh/inkwell/internal/models"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// CreateRepositoryRequest is the request body for creating a repository.
type CreateRepositoryRequest struct {
	Name string `json:"name"`
}

// RepositoriesResponse lists the known repository names.
type RepositoriesResponse struct {
	Repositories []string `json:"repositories"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Folder  string   `json:"folder"`
}

// UpdateNoteRequest is a partial note update; absent fields retain the
// stored values.
type UpdateNoteRequest struct {
	Title   *string  `json:"title"`
	Preview *string  `json:"preview"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags"`
	Folder  *string  `json:"folder"`
}

// UpsertFolderRequest is the request body for creating a folder.
type UpsertFolderRequest struct {
	Path string `json:"path"`
}

// RenameRequest carries the from/to pair for folder and tag renames.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []*models.Note `json:"results"`
}

// RepoIndexResponse is the read-only view of one repository's index
// snapshot: notes keyed by id, folder and tag membership as sorted id lists.
type RepoIndexResponse struct {
	Notes   map[string]*models.Note `json:"notes"`
	Folders map[string][]string     `json:"folders"`
	Tags    map[string][]string     `json:"tags"`
}

func indexResponse(idx storagemap.RepoIndex) RepoIndexResponse {
	resp := RepoIndexResponse{
		Notes:   idx.NoteMap,
		Folders: make(map[string][]string, len(idx.FolderMap)),
		Tags:    make(map[string][]string, len(idx.TagMap)),
	}
	for path, entry := range idx.FolderMap {
		resp.Folders[path] = sortedIDs(entry.Notes)
	}
	for tag, entry := range idx.TagMap {
		resp.Tags[tag] = sortedIDs(entry.Notes)
	}
	return resp
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
