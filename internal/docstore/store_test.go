package docstore

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arvidh/inkwell/internal/apperr"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func body(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPutAndGet(t *testing.T) {
	s := testStore(t)
	res, err := s.Put("note:aa11", body(t, map[string]string{"content": "hello"}), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if res.ID != "note:aa11" {
		t.Errorf("id = %q", res.ID)
	}
	if !strings.HasPrefix(res.Rev, "1-") {
		t.Errorf("first rev = %q, want generation 1", res.Rev)
	}

	doc, err := s.Get("note:aa11")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Rev != res.Rev {
		t.Errorf("rev = %q, want %q", doc.Rev, res.Rev)
	}
	var m map[string]string
	if err := json.Unmarshal(doc.Body, &m); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if m["content"] != "hello" {
		t.Errorf("content = %q", m["content"])
	}
}

func TestGet_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get("note:missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutAssignsDistinctRevs(t *testing.T) {
	s := testStore(t)
	r1, err := s.Put("note:x", body(t, map[string]int{"v": 1}), "")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := s.Put("note:x", body(t, map[string]int{"v": 2}), r1.Rev)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Rev == r2.Rev {
		t.Errorf("revs must differ, both %q", r1.Rev)
	}
	if !strings.HasPrefix(r2.Rev, "2-") {
		t.Errorf("second rev = %q, want generation 2", r2.Rev)
	}
}

func TestPutSameBodyStillAdvancesRev(t *testing.T) {
	s := testStore(t)
	b := body(t, map[string]string{"same": "body"})
	r1, _ := s.Put("note:x", b, "")
	r2, err := s.Put("note:x", b, r1.Rev)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Rev == r2.Rev {
		t.Error("identical bodies must still produce a fresh revision")
	}
}

func TestPut_StaleRevConflict(t *testing.T) {
	s := testStore(t)
	r1, _ := s.Put("note:x", body(t, map[string]int{"v": 1}), "")
	if _, err := s.Put("note:x", body(t, map[string]int{"v": 2}), r1.Rev); err != nil {
		t.Fatal(err)
	}
	_, err := s.Put("note:x", body(t, map[string]int{"v": 3}), r1.Rev)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestPut_ExpectedRevOnMissingDoc(t *testing.T) {
	s := testStore(t)
	_, err := s.Put("note:x", body(t, map[string]int{"v": 1}), "1-deadbeef")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestPut_UnconditionalUpsert(t *testing.T) {
	s := testStore(t)
	_, _ = s.Put("folder:/Work", body(t, map[string]string{"_id": "folder:/Work"}), "")
	// No expectedRev: not an error, just a new revision.
	r2, err := s.Put("folder:/Work", body(t, map[string]string{"_id": "folder:/Work"}), "")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !strings.HasPrefix(r2.Rev, "2-") {
		t.Errorf("rev = %q, want generation 2", r2.Rev)
	}
}

func TestDeleteTombstones(t *testing.T) {
	s := testStore(t)
	r, _ := s.Put("note:x", body(t, map[string]int{"v": 1}), "")
	if err := s.Delete("note:x", r.Rev); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("note:x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
	docs, err := s.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("ListAll after delete = %d docs, want 0", len(docs))
	}
}

func TestDelete_StaleRevConflict(t *testing.T) {
	s := testStore(t)
	r1, _ := s.Put("note:x", body(t, map[string]int{"v": 1}), "")
	r2, _ := s.Put("note:x", body(t, map[string]int{"v": 2}), r1.Rev)
	if err := s.Delete("note:x", r1.Rev); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	// Correct rev still works.
	if err := s.Delete("note:x", r2.Rev); err != nil {
		t.Fatalf("Delete with current rev: %v", err)
	}
}

func TestDelete_Missing(t *testing.T) {
	s := testStore(t)
	if err := s.Delete("note:nope", "1-x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_Twice(t *testing.T) {
	s := testStore(t)
	r, _ := s.Put("note:x", body(t, map[string]int{"v": 1}), "")
	_ = s.Delete("note:x", r.Rev)
	if err := s.Delete("note:x", r.Rev); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestRecreateAfterDelete_ContinuesGenerations(t *testing.T) {
	s := testStore(t)
	r1, _ := s.Put("note:x", body(t, map[string]int{"v": 1}), "")
	_ = s.Delete("note:x", r1.Rev)

	r3, err := s.Put("note:x", body(t, map[string]int{"v": 3}), "")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if !strings.HasPrefix(r3.Rev, "3-") {
		t.Errorf("rev = %q, want generation 3 (delete consumed 2)", r3.Rev)
	}
	if _, err := s.Get("note:x"); err != nil {
		t.Errorf("Get after recreate: %v", err)
	}
}

func TestListAllOrderedByID(t *testing.T) {
	s := testStore(t)
	_, _ = s.Put("note:bb", body(t, map[string]int{}), "")
	_, _ = s.Put("folder:/Notes", body(t, map[string]int{}), "")
	_, _ = s.Put("note:aa", body(t, map[string]int{}), "")

	docs, err := s.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	want := []string{"folder:/Notes", "note:aa", "note:bb"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestSearchNotes(t *testing.T) {
	s := testStore(t)
	_, _ = s.Put("note:1", body(t, map[string]any{
		"meta":    map[string]string{"title": "Grocery list"},
		"content": "milk and eggs",
	}), "")
	_, _ = s.Put("note:2", body(t, map[string]any{
		"meta":    map[string]string{"title": "Meeting"},
		"content": "quarterly planning",
	}), "")
	// Folder docs never match, whatever their body.
	_, _ = s.Put("folder:/milk", body(t, map[string]string{"_id": "folder:/milk"}), "")

	hits, err := s.SearchNotes("milk", 10)
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "note:1" {
		t.Errorf("hits = %+v, want only note:1", hits)
	}

	// Title matches too.
	hits, _ = s.SearchNotes("Grocery", 10)
	if len(hits) != 1 {
		t.Errorf("title search hits = %d, want 1", len(hits))
	}
}
