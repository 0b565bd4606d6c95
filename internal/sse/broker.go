// Package sse implements a Server-Sent Events broker that streams committed
// mutation events to UI clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arvidh/inkwell/internal/storagemap"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients + snapshot-refresh throttle timestamp). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	refreshMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	mutationCh    chan storagemap.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. refreshThrottle bounds how often the
// coalesced index.updated event is emitted.
func NewBroker(refreshThrottle time.Duration) *Broker {
	if refreshThrottle <= 0 {
		refreshThrottle = 2 * time.Second
	}

	b := &Broker{
		refreshMin:    refreshThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		mutationCh:    make(chan storagemap.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastRefresh time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case mut := <-b.mutationCh:
			broadcast(mutationEvent(mut))

			now := time.Now()
			if now.Sub(lastRefresh) >= b.refreshMin {
				lastRefresh = now
				broadcast(Event{Type: "index.updated", Data: map[string]string{"repo": mut.Repo}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// mutationEvent maps a storage mutation onto its wire representation.
func mutationEvent(mut storagemap.Event) Event {
	data := map[string]string{"repo": mut.Repo}
	switch mut.Type {
	case storagemap.EventCreateNote, storagemap.EventUpdateNote:
		if mut.Note != nil {
			data["id"] = mut.Note.ID
		}
	case storagemap.EventDeleteNote:
		data["id"] = mut.NoteID
	case storagemap.EventUpdateFolder, storagemap.EventDeleteFolder:
		data["path"] = mut.Folder
	case storagemap.EventMoveFolder:
		data["from"] = mut.Folder
		data["to"] = mut.NewFolder
	case storagemap.EventUpdateTag, storagemap.EventDeleteTag:
		data["tag"] = mut.Tag
	case storagemap.EventRenameTag:
		data["from"] = mut.Tag
		data["to"] = mut.NewTag
	}

	types := map[storagemap.EventType]string{
		storagemap.EventLoadAll:      "index.reloaded",
		storagemap.EventCreateNote:   "note.created",
		storagemap.EventUpdateNote:   "note.updated",
		storagemap.EventDeleteNote:   "note.deleted",
		storagemap.EventUpdateFolder: "folder.updated",
		storagemap.EventDeleteFolder: "folder.deleted",
		storagemap.EventMoveFolder:   "folder.moved",
		storagemap.EventUpdateTag:    "tag.updated",
		storagemap.EventDeleteTag:    "tag.deleted",
		storagemap.EventRenameTag:    "tag.renamed",
	}
	t, ok := types[mut.Type]
	if !ok {
		t = "index.updated"
	}
	return Event{Type: t, Data: data}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishMutation publishes a committed storage mutation plus a throttled
// index.updated event.
func (b *Broker) PublishMutation(mut storagemap.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.mutationCh <- mut:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
