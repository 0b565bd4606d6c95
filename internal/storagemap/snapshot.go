// Package storagemap maintains the derived in-memory index over every
// repository: notes, folder membership, and tag membership. The index is a
// cache rebuilt from mutation events; the document store remains the source
// of truth.
package storagemap

import "github.com/arvidh/inkwell/internal/models"

// FolderEntry is a folder's index entry: the set of note ids it contains.
type FolderEntry struct {
	Notes map[string]struct{}
}

// TagEntry is a tag's index entry. Tags are not documents; a tag exists in
// the index iff at least one note currently references it.
type TagEntry struct {
	Notes map[string]struct{}
}

// RepoIndex is one repository's normalized index.
type RepoIndex struct {
	NoteMap   map[string]*models.Note
	FolderMap map[string]FolderEntry
	TagMap    map[string]TagEntry
}

// Snapshot is the full index keyed by repository name. Snapshots are
// immutable: Apply returns a new snapshot and never mutates its input.
type Snapshot map[string]RepoIndex

func newRepoIndex() RepoIndex {
	return RepoIndex{
		NoteMap:   make(map[string]*models.Note),
		FolderMap: make(map[string]FolderEntry),
		TagMap:    make(map[string]TagEntry),
	}
}

// buildRepoIndex derives a consistent index from a repository's documents.
// Folder buckets exist for every folder document and for every folder a
// note references; tag buckets exist only for referenced tags.
func buildRepoIndex(docs models.RepositoryDocuments) RepoIndex {
	idx := newRepoIndex()
	for path := range docs.Folders {
		idx.FolderMap[path] = FolderEntry{Notes: make(map[string]struct{})}
	}
	for id, n := range docs.Notes {
		note := n.Clone()
		idx.NoteMap[id] = note

		entry, ok := idx.FolderMap[note.Folder]
		if !ok {
			entry = FolderEntry{Notes: make(map[string]struct{})}
		}
		entry.Notes[id] = struct{}{}
		idx.FolderMap[note.Folder] = entry

		for _, tag := range note.Tags {
			t, ok := idx.TagMap[tag]
			if !ok {
				t = TagEntry{Notes: make(map[string]struct{})}
			}
			t.Notes[id] = struct{}{}
			idx.TagMap[tag] = t
		}
	}
	return idx
}

// cloneRepo shallow-copies a repository index. Entries are still shared
// with the source; mutateFolder/mutateTag replace them copy-on-write.
func cloneRepo(idx RepoIndex) RepoIndex {
	c := RepoIndex{
		NoteMap:   make(map[string]*models.Note, len(idx.NoteMap)),
		FolderMap: make(map[string]FolderEntry, len(idx.FolderMap)),
		TagMap:    make(map[string]TagEntry, len(idx.TagMap)),
	}
	for k, v := range idx.NoteMap {
		c.NoteMap[k] = v
	}
	for k, v := range idx.FolderMap {
		c.FolderMap[k] = v
	}
	for k, v := range idx.TagMap {
		c.TagMap[k] = v
	}
	return c
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// addFolderNote adds a note id to a folder bucket copy-on-write, creating
// the bucket if absent.
func addFolderNote(idx RepoIndex, folder, noteID string) {
	entry, ok := idx.FolderMap[folder]
	var notes map[string]struct{}
	if ok {
		notes = cloneSet(entry.Notes)
	} else {
		notes = make(map[string]struct{}, 1)
	}
	notes[noteID] = struct{}{}
	idx.FolderMap[folder] = FolderEntry{Notes: notes}
}

// removeFolderNote removes a note id from a folder bucket copy-on-write.
// Empty folder buckets are kept: a folder exists independently of its notes.
func removeFolderNote(idx RepoIndex, folder, noteID string) {
	entry, ok := idx.FolderMap[folder]
	if !ok {
		return
	}
	notes := cloneSet(entry.Notes)
	delete(notes, noteID)
	idx.FolderMap[folder] = FolderEntry{Notes: notes}
}

// addTagNote adds a note id to a tag bucket copy-on-write, creating the
// bucket if absent.
func addTagNote(idx RepoIndex, tag, noteID string) {
	entry, ok := idx.TagMap[tag]
	var notes map[string]struct{}
	if ok {
		notes = cloneSet(entry.Notes)
	} else {
		notes = make(map[string]struct{}, 1)
	}
	notes[noteID] = struct{}{}
	idx.TagMap[tag] = TagEntry{Notes: notes}
}

// removeTagNote removes a note id from a tag bucket copy-on-write. A tag
// with no remaining notes is dropped from the index entirely.
func removeTagNote(idx RepoIndex, tag, noteID string) {
	entry, ok := idx.TagMap[tag]
	if !ok {
		return
	}
	notes := cloneSet(entry.Notes)
	delete(notes, noteID)
	if len(notes) == 0 {
		delete(idx.TagMap, tag)
		return
	}
	idx.TagMap[tag] = TagEntry{Notes: notes}
}
