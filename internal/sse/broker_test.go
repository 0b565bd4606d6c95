package sse

import (
	"strings"
	"testing"
	"time"

	"github.com/arvidh/inkwell/internal/models"
	"github.com/arvidh/inkwell/internal/storagemap"
)

func recvMessage(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("client channel closed")
		}
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return ""
	}
}

func TestSubscribeAndPublish(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want 1", n)
	}

	b.Publish(Event{Type: "ping", Data: map[string]string{"k": "v"}})

	msg := recvMessage(t, ch)
	if !strings.HasPrefix(msg, "event: ping\n") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, `"k":"v"`) {
		t.Errorf("payload missing from %q", msg)
	}
	if !strings.HasSuffix(msg, "\n\n") {
		t.Errorf("message not terminated: %q", msg)
	}
}

func TestPublishMutationTypes(t *testing.T) {
	cases := []struct {
		name string
		mut  storagemap.Event
		typ  string
		data string
	}{
		{
			"note created",
			storagemap.Event{Type: storagemap.EventCreateNote, Repo: "nb", Note: &models.Note{ID: "note:a"}},
			"note.created", `"id":"note:a"`,
		},
		{
			"note deleted",
			storagemap.Event{Type: storagemap.EventDeleteNote, Repo: "nb", NoteID: "note:a"},
			"note.deleted", `"id":"note:a"`,
		},
		{
			"folder moved",
			storagemap.Event{Type: storagemap.EventMoveFolder, Repo: "nb", Folder: "/Old", NewFolder: "/New"},
			"folder.moved", `"from":"/Old"`,
		},
		{
			"tag renamed",
			storagemap.Event{Type: storagemap.EventRenameTag, Repo: "nb", Tag: "wip", NewTag: "active"},
			"tag.renamed", `"to":"active"`,
		},
		{
			"index reloaded",
			storagemap.Event{Type: storagemap.EventLoadAll},
			"index.reloaded", `"repo":""`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBroker(time.Hour)
			defer b.Close()
			ch := b.Subscribe()

			b.PublishMutation(tc.mut)

			msg := recvMessage(t, ch)
			if !strings.HasPrefix(msg, "event: "+tc.typ+"\n") {
				t.Errorf("message = %q, want type %s", msg, tc.typ)
			}
			if !strings.Contains(msg, tc.data) {
				t.Errorf("message = %q, want data %s", msg, tc.data)
			}
		})
	}
}

func TestIndexUpdatedThrottled(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()

	mut := storagemap.Event{Type: storagemap.EventCreateNote, Repo: "nb", Note: &models.Note{ID: "note:a"}}

	// First mutation: the throttle window is open, so both the mutation
	// event and a coalesced index.updated arrive.
	b.PublishMutation(mut)
	first := recvMessage(t, ch)
	if !strings.HasPrefix(first, "event: note.created\n") {
		t.Fatalf("first = %q", first)
	}
	second := recvMessage(t, ch)
	if !strings.HasPrefix(second, "event: index.updated\n") {
		t.Fatalf("second = %q", second)
	}

	// Within the window only the mutation event arrives.
	b.PublishMutation(mut)
	third := recvMessage(t, ch)
	if !strings.HasPrefix(third, "event: note.created\n") {
		t.Fatalf("third = %q", third)
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected extra event %q inside throttle window", string(msg))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	b.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received event after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after unsubscribe")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d, want 0", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBroker(time.Hour)
	ch := b.Subscribe()

	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("client channel still open after Close")
	}
	// Operations after close are safe no-ops.
	b.Publish(Event{Type: "late"})
	b.PublishMutation(storagemap.Event{Type: storagemap.EventCreateNote})
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount after close = %d", n)
	}
	post := b.Subscribe()
	if _, ok := <-post; ok {
		t.Error("subscribe after close returned an open channel")
	}
}
