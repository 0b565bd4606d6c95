// Package models defines the persisted document shapes for Inkwell.
package models

import (
	"strings"
	"time"
)

// Document id prefixes. These are part of the on-disk format shared with
// existing stores and must not change.
const (
	NoteIDPrefix   = "note:"
	FolderIDPrefix = "folder:"
)

// DefaultFolderPath is the folder every repository always contains.
// It cannot be deleted or renamed.
const DefaultFolderPath = "/Notes"

// NoteMeta holds display metadata derived from or supplied with the content.
type NoteMeta struct {
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// Note is a note document as persisted in a repository store.
type Note struct {
	ID        string   `json:"_id"`
	Rev       string   `json:"_rev,omitempty"`
	Meta      NoteMeta `json:"meta"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Folder    string   `json:"folder"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// HasTag reports whether the note carries the given tag.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the note. The index reducer relies on this
// to keep old and new snapshots free of aliasing.
func (n *Note) Clone() *Note {
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	return &c
}

// RemoveTag returns tags without the given tag, preserving order.
func RemoveTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

// ReplaceTag swaps old for new in place, deduplicating when the set
// already carried the new name.
func ReplaceTag(tags []string, old, new string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == old {
			t = new
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Folder is a folder document. The path is its identity; there is no
// separate numeric id.
type Folder struct {
	ID  string `json:"_id"`
	Rev string `json:"_rev,omitempty"`
}

// Path returns the folder path encoded in the document id.
func (f *Folder) Path() string {
	return strings.TrimPrefix(f.ID, FolderIDPrefix)
}

// FolderDocID builds the document id for a folder path.
func FolderDocID(path string) string {
	return FolderIDPrefix + path
}

// NormalizeFolderPath cleans a folder path: a leading slash is enforced and
// trailing slashes are stripped (except for the root "/").
func NormalizeFolderPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return DefaultFolderPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}

// RepositoryDocuments is the partitioned contents of one repository store:
// notes keyed by document id, folders keyed by path.
type RepositoryDocuments struct {
	Notes   map[string]*Note
	Folders map[string]*Folder
}

// NowMillis returns the current time as epoch milliseconds, the timestamp
// unit used in persisted documents.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
