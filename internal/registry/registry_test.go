package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arvidh/inkwell/internal/apperr"
	"github.com/arvidh/inkwell/internal/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	reg := testRegistry(t)
	if _, err := reg.Open("notebook"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(filepath.Join(reg.Dir(), "notebook.db")); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestOpenReturnsCachedHandle(t *testing.T) {
	reg := testRegistry(t)
	a, err := reg.Open("notebook")
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.Open("notebook")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the same store handle on repeated Open")
	}
}

func TestOpenRejectsInvalidName(t *testing.T) {
	reg := testRegistry(t)
	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		if _, err := reg.Open(name); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestListDiscoversExistingRepositories(t *testing.T) {
	dir := t.TempDir()
	reg, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Open("alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Open("beta"); err != nil {
		t.Fatal(err)
	}
	reg.Close()

	// A fresh registry over the same directory discovers both.
	reg2, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg2.Close()
	stores, err := reg2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stores) != 2 {
		t.Errorf("len = %d, want 2", len(stores))
	}
	names, err := reg2.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("names = %v, want [alpha beta]", names)
	}
}

func TestGetUnknownRepository(t *testing.T) {
	reg := testRegistry(t)
	if _, err := reg.Get("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEnsureDefaultCreatesFolderDoc(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.EnsureDefault("notebook"); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	store, err := reg.Get("notebook")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := store.Get(models.FolderDocID(models.DefaultFolderPath))
	if err != nil {
		t.Fatalf("default folder doc missing: %v", err)
	}
	firstRev := doc.Rev

	// Idempotent: a second call must not rewrite the document.
	if err := reg.EnsureDefault("notebook"); err != nil {
		t.Fatalf("second EnsureDefault: %v", err)
	}
	doc, _ = store.Get(models.FolderDocID(models.DefaultFolderPath))
	if doc.Rev != firstRev {
		t.Errorf("rev changed on idempotent ensure: %q -> %q", firstRev, doc.Rev)
	}
}

func TestLoadAllPartitionsByPrefix(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.EnsureDefault("notebook"); err != nil {
		t.Fatal(err)
	}
	store, _ := reg.Get("notebook")

	note := models.Note{
		ID:     "note:cafe01",
		Meta:   models.NoteMeta{Title: "Hello"},
		Folder: "/Work",
		Tags:   []string{"go"},
	}
	buf, _ := json.Marshal(note)
	if _, err := store.Put(note.ID, buf, ""); err != nil {
		t.Fatal(err)
	}
	fbuf, _ := json.Marshal(models.Folder{ID: models.FolderDocID("/Work")})
	if _, err := store.Put(models.FolderDocID("/Work"), fbuf, ""); err != nil {
		t.Fatal(err)
	}

	all, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	docs, ok := all["notebook"]
	if !ok {
		t.Fatal("notebook repository missing from LoadAll")
	}
	n, ok := docs.Notes["note:cafe01"]
	if !ok {
		t.Fatal("note missing")
	}
	if n.Rev == "" {
		t.Error("loaded note must carry its store revision")
	}
	if n.Meta.Title != "Hello" || n.Folder != "/Work" {
		t.Errorf("note = %+v", n)
	}
	if _, ok := docs.Folders["/Work"]; !ok {
		t.Error("folder /Work missing")
	}
	if _, ok := docs.Folders[models.DefaultFolderPath]; !ok {
		t.Error("default folder missing")
	}
}

func TestLoadAllInjectsDefaultFolder(t *testing.T) {
	reg := testRegistry(t)
	// Repository with no folder documents at all.
	if _, err := reg.Open("bare"); err != nil {
		t.Fatal(err)
	}
	all, err := reg.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all["bare"].Folders[models.DefaultFolderPath]; !ok {
		t.Error("default folder entry must be present even when absent on disk")
	}
}

func TestRefreshPicksUpNewRepositories(t *testing.T) {
	dir := t.TempDir()
	reg, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	if _, err := reg.List(); err != nil {
		t.Fatal(err)
	}

	// Simulate another process dropping in a repository file.
	other, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Open("dropped"); err != nil {
		t.Fatal(err)
	}
	other.Close()

	if err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := reg.Get("dropped"); err != nil {
		t.Errorf("dropped repository not visible after refresh: %v", err)
	}
}

func TestNewRejectsMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}
