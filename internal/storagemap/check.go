package storagemap

import (
	"fmt"

	"github.com/arvidh/inkwell/internal/apperr"
)

// CheckSnapshot verifies the structural invariants of a snapshot: every
// note is a member of exactly its own folder bucket, tag buckets mirror the
// note tag lists, and no tag bucket is empty. A violation points at a bug
// in the reducer or at index divergence and is reported via
// apperr.ErrInvariant.
func CheckSnapshot(snap Snapshot) error {
	for repo, idx := range snap {
		for id, n := range idx.NoteMap {
			entry, ok := idx.FolderMap[n.Folder]
			if !ok {
				return violation(repo, "note %s references missing folder %q", id, n.Folder)
			}
			if _, ok := entry.Notes[id]; !ok {
				return violation(repo, "note %s absent from folder bucket %q", id, n.Folder)
			}
			for _, tag := range n.Tags {
				te, ok := idx.TagMap[tag]
				if !ok {
					return violation(repo, "note %s references missing tag %q", id, tag)
				}
				if _, ok := te.Notes[id]; !ok {
					return violation(repo, "note %s absent from tag bucket %q", id, tag)
				}
			}
		}
		for path, entry := range idx.FolderMap {
			for id := range entry.Notes {
				n, ok := idx.NoteMap[id]
				if !ok {
					return violation(repo, "folder %q lists unknown note %s", path, id)
				}
				if n.Folder != path {
					return violation(repo, "folder %q lists note %s filed under %q", path, id, n.Folder)
				}
			}
		}
		for tag, entry := range idx.TagMap {
			if len(entry.Notes) == 0 {
				return violation(repo, "empty tag bucket %q", tag)
			}
			for id := range entry.Notes {
				n, ok := idx.NoteMap[id]
				if !ok {
					return violation(repo, "tag %q lists unknown note %s", tag, id)
				}
				if !n.HasTag(tag) {
					return violation(repo, "tag %q lists note %s which does not carry it", tag, id)
				}
			}
		}
	}
	return nil
}

func violation(repo, format string, args ...any) error {
	return fmt.Errorf("storagemap: repo %s: %s: %w", repo, fmt.Sprintf(format, args...), apperr.ErrInvariant)
}
