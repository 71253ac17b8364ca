package rag

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker remembers the active (pinned) document per session. A pinned
// document scopes retrieval until it is cleared or overwritten.
//
// Tracker is safe for concurrent use; concurrent writes to the same session
// resolve last-writer-wins.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]uuid.UUID
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]uuid.UUID)}
}

// Set pins a document for a session, replacing any previous pin.
func (t *Tracker) Set(sessionID string, docID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[sessionID] = docID
}

// Get returns the pinned document for a session, if any.
func (t *Tracker) Get(sessionID string) (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.active[sessionID]
	return id, ok
}

// Clear removes a session's pin. Clearing an unpinned session is a no-op.
func (t *Tracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, sessionID)
}
