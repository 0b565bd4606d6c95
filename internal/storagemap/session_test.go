package storagemap

import (
	"fmt"
	"sync"
	"testing"
)

func TestSessionDispatchAndRepo(t *testing.T) {
	s := NewSession()
	s.Dispatch(Event{Type: EventCreateNote, Repo: "r", Note: note("note:a", "/Notes", "go")})

	idx, ok := s.Repo("r")
	if !ok {
		t.Fatal("repository missing from session")
	}
	if _, ok := idx.NoteMap["note:a"]; !ok {
		t.Error("dispatched note not visible")
	}
	if _, ok := s.Repo("ghost"); ok {
		t.Error("Repo reported an unknown repository")
	}
}

func TestSessionOldSnapshotStaysConsistent(t *testing.T) {
	s := NewSession()
	s.Dispatch(Event{Type: EventCreateNote, Repo: "r", Note: note("note:a", "/Notes", "go")})

	held := s.Snapshot()
	s.Dispatch(Event{Type: EventDeleteNote, Repo: "r", NoteID: "note:a"})

	// A reader holding the pre-delete snapshot still sees the note.
	if _, ok := held["r"].NoteMap["note:a"]; !ok {
		t.Error("held snapshot changed under the reader")
	}
	if _, ok := s.Snapshot()["r"].NoteMap["note:a"]; ok {
		t.Error("current snapshot still contains deleted note")
	}
}

func TestSessionConcurrentReadersAndWriters(t *testing.T) {
	s := NewSession()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("note:%d-%d", i, j)
				s.Dispatch(Event{Type: EventCreateNote, Repo: "r", Note: note(id, "/Notes", "load")})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if idx, ok := s.Repo("r"); ok {
					_ = len(idx.NoteMap)
				}
			}
		}()
	}
	wg.Wait()

	idx, _ := s.Repo("r")
	if got := len(idx.NoteMap); got != 8*50 {
		t.Errorf("NoteMap size = %d, want %d", got, 8*50)
	}
	checkConsistent(t, s.Snapshot())
}
