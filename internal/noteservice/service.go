// Package noteservice implements the storage manager: note, folder, and tag
// operations against a repository's document store. Every durable success
// dispatches exactly one mutation event so the in-memory index (and any
// other consumer) stays consistent with the store.
package noteservice

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/arvidh/inkwell/internal/apperr"
	"github.com/arvidh/inkwell/internal/docstore"
	"github.com/arvidh/inkwell/internal/models"
	"github.com/arvidh/inkwell/internal/parser"
	"github.com/arvidh/inkwell/internal/registry"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// maxIDAttempts bounds the random-id collision retry loop. Collisions are
// effectively impossible with 64 random bits, but the loop must not be
// unbounded.
const maxIDAttempts = 5

// CreateNoteParams is the payload for creating a note. An empty Folder
// defaults to the repository's default folder; an empty Title is derived
// from the content.
type CreateNoteParams struct {
	Title   string
	Content string
	Tags    []string
	Folder  string
}

// NotePatch is a partial update. Nil fields retain the stored value; meta
// fields merge individually, never wholesale. Rev, when set, is the
// expected revision for optimistic concurrency (defaults to the currently
// stored revision).
type NotePatch struct {
	Rev     string
	Title   *string
	Preview *string
	Content *string
	Tags    []string
	Folder  *string
}

// Service coordinates document-store writes with event dispatch.
type Service struct {
	reg      *registry.Registry
	dispatch storagemap.Dispatcher
}

// New creates a note service. dispatch receives one event per committed
// mutation; it must not be nil.
func New(reg *registry.Registry, dispatch storagemap.Dispatcher) *Service {
	return &Service{reg: reg, dispatch: dispatch}
}

// CreateRepository ensures the named repository exists on disk with its
// default folder.
func (s *Service) CreateRepository(_ context.Context, name string) error {
	if err := s.reg.EnsureDefault(name); err != nil {
		return err
	}
	s.dispatch.Dispatch(storagemap.Event{
		Type:   storagemap.EventUpdateFolder,
		Repo:   name,
		Folder: models.DefaultFolderPath,
	})
	return nil
}

// ListRepositories returns the known repository names in stable order.
func (s *Service) ListRepositories(_ context.Context) ([]string, error) {
	return s.reg.Names()
}

// GetNote reads a note document from the store.
func (s *Service) GetNote(_ context.Context, repo, id string) (*models.Note, error) {
	store, err := s.reg.Get(repo)
	if err != nil {
		return nil, err
	}
	doc, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	return decodeNote(doc)
}

// CreateNote generates a fresh note id, fills derived metadata, and writes
// the document.
func (s *Service) CreateNote(_ context.Context, repo string, params CreateNoteParams) (*models.Note, error) {
	store, err := s.reg.Get(repo)
	if err != nil {
		return nil, err
	}

	id, err := generateNoteID(store)
	if err != nil {
		return nil, err
	}

	derived := parser.Parse(params.Content)
	title := params.Title
	if title == "" {
		title = derived.Title
	}
	folder := models.DefaultFolderPath
	if params.Folder != "" {
		folder = models.NormalizeFolderPath(params.Folder)
	}

	now := models.NowMillis()
	note := &models.Note{
		ID:        id,
		Meta:      models.NoteMeta{Title: title, Preview: derived.Preview},
		Content:   params.Content,
		Tags:      parser.MergeTags(params.Tags, derived.Tags),
		Folder:    folder,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := putNote(store, note, "")
	if err != nil {
		return nil, err
	}
	note.Rev = res.Rev

	s.dispatch.Dispatch(storagemap.Event{Type: storagemap.EventCreateNote, Repo: repo, Note: note})
	return note, nil
}

// UpdateNote deep-merges a partial payload over the stored document and
// writes it back under optimistic concurrency. A stale revision (either
// patch.Rev or a concurrent writer between read and write) fails with
// apperr.ErrConflict.
func (s *Service) UpdateNote(_ context.Context, repo, id string, patch NotePatch) (*models.Note, error) {
	store, err := s.reg.Get(repo)
	if err != nil {
		return nil, err
	}
	doc, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	note, err := decodeNote(doc)
	if err != nil {
		return nil, err
	}

	expected := patch.Rev
	if expected == "" {
		expected = note.Rev
	}

	if patch.Content != nil {
		note.Content = *patch.Content
		if patch.Preview == nil {
			note.Meta.Preview = parser.Parse(note.Content).Preview
		}
	}
	if patch.Title != nil {
		note.Meta.Title = *patch.Title
	}
	if patch.Preview != nil {
		note.Meta.Preview = *patch.Preview
	}
	if patch.Tags != nil {
		note.Tags = parser.MergeTags(patch.Tags, nil)
	}
	if patch.Folder != nil {
		note.Folder = models.NormalizeFolderPath(*patch.Folder)
	}
	note.UpdatedAt = models.NowMillis()

	res, err := putNote(store, note, expected)
	if err != nil {
		return nil, err
	}
	note.Rev = res.Rev

	s.dispatch.Dispatch(storagemap.Event{Type: storagemap.EventUpdateNote, Repo: repo, Note: note})
	return note, nil
}

// DeleteNote reads the current revision and tombstones the document.
func (s *Service) DeleteNote(_ context.Context, repo, id string) error {
	store, err := s.reg.Get(repo)
	if err != nil {
		return err
	}
	doc, err := store.Get(id)
	if err != nil {
		return err
	}
	if err := store.Delete(id, doc.Rev); err != nil {
		return err
	}
	s.dispatch.Dispatch(storagemap.Event{Type: storagemap.EventDeleteNote, Repo: repo, NoteID: id})
	return nil
}

// UpsertFolder writes the folder document for path. Calling it twice is not
// an error; the second call simply assigns a new revision.
func (s *Service) UpsertFolder(_ context.Context, repo, path string) (*models.Folder, error) {
	store, err := s.reg.Get(repo)
	if err != nil {
		return nil, err
	}
	path = models.NormalizeFolderPath(path)
	folder := &models.Folder{ID: models.FolderDocID(path)}
	body, _ := json.Marshal(folder)
	res, err := store.Put(folder.ID, body, "")
	if err != nil {
		return nil, err
	}
	folder.Rev = res.Rev

	s.dispatch.Dispatch(storagemap.Event{Type: storagemap.EventUpdateFolder, Repo: repo, Folder: path})
	return folder, nil
}

// DeleteFolder tombstones the folder document and every note document filed
// under it. The default folder cannot be deleted.
func (s *Service) DeleteFolder(_ context.Context, repo, path string) error {
	store, err := s.reg.Get(repo)
	if err != nil {
		return err
	}
	path = models.NormalizeFolderPath(path)
	if path == models.DefaultFolderPath {
		return fmt.Errorf("noteservice: delete folder %s: %w", path, apperr.ErrDefaultFolder)
	}
	folderDoc, err := store.Get(models.FolderDocID(path))
	if err != nil {
		return err
	}

	notes, err := notesIn(store)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if n.Folder != path {
			continue
		}
		if err := store.Delete(n.ID, n.Rev); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	if err := store.Delete(folderDoc.ID, folderDoc.Rev); err != nil {
		return err
	}

	s.dispatch.Dispatch(storagemap.Event{Type: storagemap.EventDeleteFolder, Repo: repo, Folder: path})
	return nil
}

// RenameFolder moves every contained note to newPath, creates the new
// folder document, and removes the old one. The sequence is not atomic but
// is ordered so that re-running the same rename after a crash converges:
// already-moved notes are skipped and a missing old folder document is not
// an error.
func (s *Service) RenameFolder(_ context.Context, repo, oldPath, newPath string) error {
	store, err := s.reg.Get(repo)
	if err != nil {
		return err
	}
	oldPath = models.NormalizeFolderPath(oldPath)
	newPath = models.NormalizeFolderPath(newPath)
	if oldPath == models.DefaultFolderPath {
		return fmt.Errorf("noteservice: rename folder %s: %w", oldPath, apperr.ErrDefaultFolder)
	}
	if oldPath == newPath {
		return nil
	}

	newFolder := models.Folder{ID: models.FolderDocID(newPath)}
	body, _ := json.Marshal(newFolder)
	if _, err := store.Put(newFolder.ID, body, ""); err != nil {
		return err
	}

	notes, err := notesIn(store)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if n.Folder != oldPath {
			continue
		}
		n.Folder = newPath
		n.UpdatedAt = models.NowMillis()
		if _, err := putNote(store, n, n.Rev); err != nil {
			return err
		}
	}

	if oldDoc, err := store.Get(models.FolderDocID(oldPath)); err == nil {
		if err := store.Delete(oldDoc.ID, oldDoc.Rev); err != nil {
			return err
		}
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	s.dispatch.Dispatch(storagemap.Event{
		Type:      storagemap.EventMoveFolder,
		Repo:      repo,
		Folder:    oldPath,
		NewFolder: newPath,
	})
	return nil
}

// RenameTag replaces oldTag with newTag on every note carrying it, one
// write per note.
func (s *Service) RenameTag(_ context.Context, repo, oldTag, newTag string) error {
	if oldTag == "" || newTag == "" {
		return fmt.Errorf("noteservice: rename tag: empty tag name")
	}
	if oldTag == newTag {
		return nil
	}
	store, err := s.reg.Get(repo)
	if err != nil {
		return err
	}
	notes, err := notesIn(store)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if !n.HasTag(oldTag) {
			continue
		}
		n.Tags = models.ReplaceTag(n.Tags, oldTag, newTag)
		n.UpdatedAt = models.NowMillis()
		if _, err := putNote(store, n, n.Rev); err != nil {
			return err
		}
	}

	s.dispatch.Dispatch(storagemap.Event{
		Type:   storagemap.EventRenameTag,
		Repo:   repo,
		Tag:    oldTag,
		NewTag: newTag,
	})
	return nil
}

// DeleteTag removes the tag from every note carrying it.
func (s *Service) DeleteTag(_ context.Context, repo, tag string) error {
	if tag == "" {
		return fmt.Errorf("noteservice: delete tag: empty tag name")
	}
	store, err := s.reg.Get(repo)
	if err != nil {
		return err
	}
	notes, err := notesIn(store)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if !n.HasTag(tag) {
			continue
		}
		n.Tags = models.RemoveTag(n.Tags, tag)
		n.UpdatedAt = models.NowMillis()
		if _, err := putNote(store, n, n.Rev); err != nil {
			return err
		}
	}

	s.dispatch.Dispatch(storagemap.Event{Type: storagemap.EventDeleteTag, Repo: repo, Tag: tag})
	return nil
}

// SearchNotes returns notes whose title or content matches the query.
func (s *Service) SearchNotes(_ context.Context, repo, query string, limit int) ([]*models.Note, error) {
	store, err := s.reg.Get(repo)
	if err != nil {
		return nil, err
	}
	docs, err := store.SearchNotes(query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Note, 0, len(docs))
	for i := range docs {
		n, err := decodeNote(&docs[i])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// generateNoteID draws random candidate ids until one is free, giving up
// after maxIDAttempts with apperr.ErrIDGeneration.
func generateNoteID(store *docstore.Store) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("noteservice: random id: %w", err)
		}
		id := models.NoteIDPrefix + hex.EncodeToString(buf[:])
		_, err := store.Get(id)
		if errors.Is(err, apperr.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		// Live document under this id: collision, draw again.
	}
	return "", fmt.Errorf("noteservice: %d attempts exhausted: %w", maxIDAttempts, apperr.ErrIDGeneration)
}

// putNote marshals the note without its revision (the store owns revisions)
// and writes it.
func putNote(store *docstore.Store, note *models.Note, expectedRev string) (docstore.PutResult, error) {
	clean := note.Clone()
	clean.Rev = ""
	body, err := json.Marshal(clean)
	if err != nil {
		return docstore.PutResult{}, fmt.Errorf("noteservice: marshal %s: %w", note.ID, err)
	}
	return store.Put(note.ID, body, expectedRev)
}

func decodeNote(doc *docstore.Document) (*models.Note, error) {
	var n models.Note
	if err := json.Unmarshal(doc.Body, &n); err != nil {
		return nil, fmt.Errorf("noteservice: decode %s: %w", doc.ID, err)
	}
	n.ID = doc.ID
	n.Rev = doc.Rev
	return &n, nil
}

// notesIn lists every live note document in the store.
func notesIn(store *docstore.Store) ([]*models.Note, error) {
	docs, err := store.ListAll()
	if err != nil {
		return nil, err
	}
	var out []*models.Note
	for i := range docs {
		if !strings.HasPrefix(docs[i].ID, models.NoteIDPrefix) {
			continue
		}
		n, err := decodeNote(&docs[i])
		if err != nil {
			continue // malformed document, skip
		}
		out = append(out, n)
	}
	return out, nil
}
