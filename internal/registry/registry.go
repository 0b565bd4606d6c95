// Package registry discovers and owns the per-repository document stores
// living under the Inkwell data directory. One SQLite file per repository,
// named <repository>.db.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/arvidh/inkwell/internal/apperr"
	"github.com/arvidh/inkwell/internal/docstore"
	"github.com/arvidh/inkwell/internal/models"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Registry caches open document stores per repository name. Handles are
// process-wide singletons: every caller asking for the same repository gets
// the same store.
type Registry struct {
	dir string

	mu      sync.Mutex
	stores  map[string]*docstore.Store
	scanned bool
}

// New creates a registry rooted at dir. The directory must already exist.
func New(dir string) (*Registry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("registry: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("registry: not a directory: %s", abs)
	}
	return &Registry{dir: abs, stores: make(map[string]*docstore.Store)}, nil
}

// Dir returns the absolute data directory path.
func (r *Registry) Dir() string {
	return r.dir
}

// Open returns the store for the named repository, creating its database
// file on first use. Repeated calls return the same handle.
func (r *Registry) Open(name string) (*docstore.Store, error) {
	if !nameRe.MatchString(name) {
		return nil, fmt.Errorf("registry: invalid repository name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked(name)
}

func (r *Registry) openLocked(name string) (*docstore.Store, error) {
	if s, ok := r.stores[name]; ok {
		return s, nil
	}
	s, err := docstore.Open(filepath.Join(r.dir, name+".db"))
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", name, err)
	}
	r.stores[name] = s
	return s, nil
}

// Get returns the store for an already-known repository without creating one.
func (r *Registry) Get(name string) (*docstore.Store, error) {
	if _, err := r.List(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("registry: repository %s: %w", name, apperr.ErrNotFound)
	}
	return s, nil
}

// List returns every known repository store. The first call scans the data
// directory for .db files; the result is cached for the process lifetime
// (Refresh rescans).
func (r *Registry) List() (map[string]*docstore.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.scanned {
		if err := r.scanLocked(); err != nil {
			return nil, err
		}
		r.scanned = true
	}
	out := make(map[string]*docstore.Store, len(r.stores))
	for name, s := range r.stores {
		out[name] = s
	}
	return out, nil
}

// Names returns the repository names in a stable (sorted) order.
func (r *Registry) Names() ([]string, error) {
	stores, err := r.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Refresh rescans the data directory, picking up repository files created
// by other processes.
func (r *Registry) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.scanLocked(); err != nil {
		return err
	}
	r.scanned = true
	return nil
}

func (r *Registry) scanLocked() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("registry: scan: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".db")
		if !nameRe.MatchString(name) {
			continue
		}
		if _, err := r.openLocked(name); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefault guarantees that the named repository exists on disk with its
// default folder document. Called once during initialization.
func (r *Registry) EnsureDefault(name string) error {
	store, err := r.Open(name)
	if err != nil {
		return err
	}
	id := models.FolderDocID(models.DefaultFolderPath)
	if _, err := store.Get(id); err == nil {
		return nil
	}
	body, _ := json.Marshal(models.Folder{ID: id})
	if _, err := store.Put(id, body, ""); err != nil {
		return fmt.Errorf("registry: ensure default: %w", err)
	}
	return nil
}

// LoadAll lists every repository's documents and partitions them by id
// prefix into notes and folders. Every result carries a default folder
// entry even when none is stored on disk.
func (r *Registry) LoadAll() (map[string]models.RepositoryDocuments, error) {
	stores, err := r.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.RepositoryDocuments, len(stores))
	for name, store := range stores {
		docs, err := store.ListAll()
		if err != nil {
			return nil, fmt.Errorf("registry: load %s: %w", name, err)
		}
		repo := models.RepositoryDocuments{
			Notes:   make(map[string]*models.Note),
			Folders: make(map[string]*models.Folder),
		}
		for _, d := range docs {
			switch {
			case strings.HasPrefix(d.ID, models.NoteIDPrefix):
				var n models.Note
				if err := json.Unmarshal(d.Body, &n); err != nil {
					continue // malformed document, leave unindexed
				}
				n.ID = d.ID
				n.Rev = d.Rev
				repo.Notes[n.ID] = &n
			case strings.HasPrefix(d.ID, models.FolderIDPrefix):
				f := models.Folder{ID: d.ID, Rev: d.Rev}
				repo.Folders[f.Path()] = &f
			}
		}
		if _, ok := repo.Folders[models.DefaultFolderPath]; !ok {
			repo.Folders[models.DefaultFolderPath] = &models.Folder{
				ID: models.FolderDocID(models.DefaultFolderPath),
			}
		}
		out[name] = repo
	}
	return out, nil
}

// Close closes every open store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, s := range r.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.stores, name)
	}
	return firstErr
}
