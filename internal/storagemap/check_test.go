package storagemap

import (
	"errors"
	"testing"

	"github.com/arvidh/inkwell/internal/apperr"
)

func TestCheckSnapshotAcceptsReducerOutput(t *testing.T) {
	snap := seed(t,
		Event{Type: EventCreateNote, Repo: "r", Note: note("note:a", "/Notes", "go")},
		Event{Type: EventUpdateNote, Repo: "r", Note: note("note:a", "/Work", "go", "wip")},
		Event{Type: EventRenameTag, Repo: "r", Tag: "wip", NewTag: "active"},
	)
	if err := CheckSnapshot(snap); err != nil {
		t.Errorf("CheckSnapshot = %v", err)
	}
}

func TestCheckSnapshotDetectsDivergence(t *testing.T) {
	snap := seed(t, Event{Type: EventCreateNote, Repo: "r", Note: note("note:a", "/Notes", "go")})

	// Hand-corrupt a copy: the note claims a folder with no bucket.
	bad := Apply(snap, Event{Type: EventUpdateFolder, Repo: "r", Folder: "/X"})
	bad["r"].NoteMap["note:a"] = note("note:a", "/Ghost", "go")

	err := CheckSnapshot(bad)
	if !errors.Is(err, apperr.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
}
