package storagemap

import "github.com/arvidh/inkwell/internal/models"

// EventType identifies a completed mutation.
type EventType string

// Event types dispatched after a durable write succeeds.
const (
	EventLoadAll      EventType = "LOAD_ALL"
	EventCreateNote   EventType = "CREATE_NOTE"
	EventUpdateNote   EventType = "UPDATE_NOTE"
	EventDeleteNote   EventType = "DELETE_NOTE"
	EventUpdateFolder EventType = "UPDATE_FOLDER"
	EventDeleteFolder EventType = "DELETE_FOLDER"
	EventMoveFolder   EventType = "MOVE_FOLDER"
	EventUpdateTag    EventType = "UPDATE_TAG"
	EventDeleteTag    EventType = "DELETE_TAG"
	EventRenameTag    EventType = "RENAME_TAG"
)

// Event describes a mutation that has already been applied to the document
// store. Only the fields relevant to the event type are set.
type Event struct {
	Type EventType
	Repo string

	// Note carries the full post-write document for CREATE_NOTE and
	// UPDATE_NOTE; the reducer diffs against its previous snapshot state.
	Note *models.Note

	// NoteID identifies the subject of DELETE_NOTE.
	NoteID string

	// Folder is the subject path for UPDATE_FOLDER, DELETE_FOLDER, and the
	// old path for MOVE_FOLDER. NewFolder is MOVE_FOLDER's new path.
	Folder    string
	NewFolder string

	// Tag is the subject for UPDATE_TAG, DELETE_TAG, and the old name for
	// RENAME_TAG. NewTag is RENAME_TAG's new name.
	Tag    string
	NewTag string

	// Docs carries the freshly loaded repository contents for LOAD_ALL.
	Docs map[string]models.RepositoryDocuments
}

// Dispatcher consumes mutation events. The Session is the canonical
// implementation; entry wiring composes it with the SSE broker.
type Dispatcher interface {
	Dispatch(Event)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(Event)

// Dispatch calls f(ev).
func (f DispatcherFunc) Dispatch(ev Event) { f(ev) }
