package storagemap

import "sync"

// Session owns the live index snapshot for the process. The snapshot
// reference is replaced wholesale on every dispatch, never mutated in
// place, so readers holding an old snapshot always see a consistent view.
type Session struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSession creates a session with an empty index.
func NewSession() *Session {
	return &Session{snap: Snapshot{}}
}

// Dispatch applies a mutation event, replacing the current snapshot.
func (s *Session) Dispatch(ev Event) {
	s.mu.Lock()
	s.snap = Apply(s.snap, ev)
	s.mu.Unlock()
}

// Snapshot returns the current index snapshot. The returned value must be
// treated as read-only.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Repo returns one repository's index from the current snapshot.
func (s *Session) Repo(name string) (RepoIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.snap[name]
	return idx, ok
}
