package storagemap

import "github.com/arvidh/inkwell/internal/models"

// Apply is the index state transition: it consumes a mutation event and
// returns the successor snapshot. It is a total function with no side
// effects; events referencing unknown notes, folders, or tags are no-ops,
// so a malformed event can never corrupt or crash the index.
func Apply(snap Snapshot, ev Event) Snapshot {
	if ev.Type == EventLoadAll {
		next := make(Snapshot, len(ev.Docs))
		for repo, docs := range ev.Docs {
			next[repo] = buildRepoIndex(docs)
		}
		return next
	}
	if ev.Repo == "" {
		return snap
	}

	next := make(Snapshot, len(snap)+1)
	for repo, idx := range snap {
		next[repo] = idx
	}

	idx, ok := next[ev.Repo]
	if !ok {
		idx = newRepoIndex()
	}
	idx = cloneRepo(idx)

	switch ev.Type {
	case EventCreateNote:
		applyCreateNote(idx, ev)
	case EventUpdateNote:
		applyUpdateNote(idx, ev)
	case EventDeleteNote:
		applyDeleteNote(idx, ev)
	case EventUpdateFolder:
		applyUpdateFolder(idx, ev)
	case EventDeleteFolder:
		applyDeleteFolder(idx, ev)
	case EventMoveFolder:
		applyMoveFolder(idx, ev)
	case EventUpdateTag:
		applyUpdateTag(idx, ev)
	case EventDeleteTag:
		applyDeleteTag(idx, ev)
	case EventRenameTag:
		applyRenameTag(idx, ev)
	default:
		return snap
	}

	next[ev.Repo] = idx
	return next
}

func applyCreateNote(idx RepoIndex, ev Event) {
	if ev.Note == nil || ev.Note.ID == "" {
		return
	}
	note := ev.Note.Clone()
	idx.NoteMap[note.ID] = note
	addFolderNote(idx, note.Folder, note.ID)
	for _, tag := range note.Tags {
		addTagNote(idx, tag, note.ID)
	}
}

func applyUpdateNote(idx RepoIndex, ev Event) {
	if ev.Note == nil || ev.Note.ID == "" {
		return
	}
	old, ok := idx.NoteMap[ev.Note.ID]
	if !ok {
		return
	}
	note := ev.Note.Clone()
	idx.NoteMap[note.ID] = note

	if old.Folder != note.Folder {
		removeFolderNote(idx, old.Folder, note.ID)
		addFolderNote(idx, note.Folder, note.ID)
	}

	// Diff tag sets: drop stale memberships, add new ones.
	oldTags := make(map[string]struct{}, len(old.Tags))
	for _, t := range old.Tags {
		oldTags[t] = struct{}{}
	}
	newTags := make(map[string]struct{}, len(note.Tags))
	for _, t := range note.Tags {
		newTags[t] = struct{}{}
	}
	for t := range oldTags {
		if _, still := newTags[t]; !still {
			removeTagNote(idx, t, note.ID)
		}
	}
	for t := range newTags {
		if _, had := oldTags[t]; !had {
			addTagNote(idx, t, note.ID)
		}
	}
}

func applyDeleteNote(idx RepoIndex, ev Event) {
	note, ok := idx.NoteMap[ev.NoteID]
	if !ok {
		return
	}
	delete(idx.NoteMap, ev.NoteID)
	removeFolderNote(idx, note.Folder, ev.NoteID)
	for _, tag := range note.Tags {
		removeTagNote(idx, tag, ev.NoteID)
	}
}

func applyUpdateFolder(idx RepoIndex, ev Event) {
	if ev.Folder == "" {
		return
	}
	if _, ok := idx.FolderMap[ev.Folder]; !ok {
		idx.FolderMap[ev.Folder] = FolderEntry{Notes: make(map[string]struct{})}
	}
}

func applyDeleteFolder(idx RepoIndex, ev Event) {
	entry, ok := idx.FolderMap[ev.Folder]
	if !ok {
		return
	}
	for noteID := range entry.Notes {
		note, ok := idx.NoteMap[noteID]
		if !ok {
			continue
		}
		delete(idx.NoteMap, noteID)
		for _, tag := range note.Tags {
			removeTagNote(idx, tag, noteID)
		}
	}
	delete(idx.FolderMap, ev.Folder)
}

func applyMoveFolder(idx RepoIndex, ev Event) {
	if ev.NewFolder == "" || ev.Folder == ev.NewFolder {
		return
	}
	entry, ok := idx.FolderMap[ev.Folder]
	if !ok {
		return
	}
	for noteID := range entry.Notes {
		note, ok := idx.NoteMap[noteID]
		if !ok {
			continue
		}
		moved := note.Clone()
		moved.Folder = ev.NewFolder
		idx.NoteMap[noteID] = moved
	}
	// The new entry carries the old note-id set, merged with any notes
	// already filed under the destination.
	notes := cloneSet(entry.Notes)
	if existing, ok := idx.FolderMap[ev.NewFolder]; ok {
		for id := range existing.Notes {
			notes[id] = struct{}{}
		}
	}
	delete(idx.FolderMap, ev.Folder)
	idx.FolderMap[ev.NewFolder] = FolderEntry{Notes: notes}
}

func applyUpdateTag(idx RepoIndex, ev Event) {
	if ev.Tag == "" {
		return
	}
	if _, ok := idx.TagMap[ev.Tag]; !ok {
		idx.TagMap[ev.Tag] = TagEntry{Notes: make(map[string]struct{})}
	}
}

func applyDeleteTag(idx RepoIndex, ev Event) {
	entry, ok := idx.TagMap[ev.Tag]
	if !ok {
		return
	}
	for noteID := range entry.Notes {
		note, ok := idx.NoteMap[noteID]
		if !ok {
			continue
		}
		stripped := note.Clone()
		stripped.Tags = models.RemoveTag(stripped.Tags, ev.Tag)
		idx.NoteMap[noteID] = stripped
	}
	delete(idx.TagMap, ev.Tag)
}

func applyRenameTag(idx RepoIndex, ev Event) {
	if ev.NewTag == "" || ev.Tag == ev.NewTag {
		return
	}
	entry, ok := idx.TagMap[ev.Tag]
	if !ok {
		return
	}
	for noteID := range entry.Notes {
		note, ok := idx.NoteMap[noteID]
		if !ok {
			continue
		}
		renamed := note.Clone()
		renamed.Tags = models.ReplaceTag(renamed.Tags, ev.Tag, ev.NewTag)
		idx.NoteMap[noteID] = renamed
	}
	notes := cloneSet(entry.Notes)
	if existing, ok := idx.TagMap[ev.NewTag]; ok {
		for id := range existing.Notes {
			notes[id] = struct{}{}
		}
	}
	delete(idx.TagMap, ev.Tag)
	idx.TagMap[ev.NewTag] = TagEntry{Notes: notes}
}
