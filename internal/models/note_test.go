package models

import "testing"

func TestNormalizeFolderPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/Projects", "/Projects"},
		{"Projects", "/Projects"},
		{"/Projects/", "/Projects"},
		{"Projects/Go//", "/Projects/Go"},
		{"  /Trimmed  ", "/Trimmed"},
		{"/", "/"},
		{"", DefaultFolderPath},
		{"   ", DefaultFolderPath},
	}
	for _, tc := range cases {
		if got := NormalizeFolderPath(tc.in); got != tc.want {
			t.Errorf("NormalizeFolderPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFolderPathRoundTrip(t *testing.T) {
	f := Folder{ID: FolderDocID("/Projects/Go")}
	if got := f.Path(); got != "/Projects/Go" {
		t.Errorf("Path() = %q", got)
	}
	if f.ID != "folder:/Projects/Go" {
		t.Errorf("ID = %q", f.ID)
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := &Note{ID: "note:a", Tags: []string{"one", "two"}}
	c := n.Clone()
	c.Tags[0] = "mutated"
	c.ID = "note:b"

	if n.Tags[0] != "one" || n.ID != "note:a" {
		t.Error("Clone shares state with the original")
	}
}

func TestRemoveTag(t *testing.T) {
	got := RemoveTag([]string{"a", "b", "a", "c"}, "a")
	want := []string{"b", "c"}
	if len(got) != len(want) || got[0] != "b" || got[1] != "c" {
		t.Errorf("RemoveTag = %v, want %v", got, want)
	}
	if got := RemoveTag(nil, "a"); len(got) != 0 {
		t.Errorf("RemoveTag(nil) = %v", got)
	}
}

func TestReplaceTag(t *testing.T) {
	got := ReplaceTag([]string{"old", "other"}, "old", "new")
	if len(got) != 2 || got[0] != "new" || got[1] != "other" {
		t.Errorf("ReplaceTag = %v", got)
	}

	// Renaming onto a name the note already carries deduplicates.
	got = ReplaceTag([]string{"old", "new", "other"}, "old", "new")
	if len(got) != 2 || got[0] != "new" || got[1] != "other" {
		t.Errorf("ReplaceTag with collision = %v", got)
	}
}

func TestHasTag(t *testing.T) {
	n := &Note{Tags: []string{"go"}}
	if !n.HasTag("go") || n.HasTag("rust") {
		t.Error("HasTag misreported membership")
	}
}
