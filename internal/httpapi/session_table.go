package httpapi

import "sync"

// SessionTable tracks active chat sessions and supports graceful
// draining. When draining is enabled, new connections are rejected while
// in-flight sessions finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(),
// preventing a TOCTOU race where StartDraining+Wait could be called
// between the draining check and wg.Add.
type SessionTable struct {
	mu       sync.Mutex
	draining bool
	sessions map[string]*chatSession
	wg       sync.WaitGroup
}

// NewSessionTable creates a new SessionTable.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*chatSession)}
}

// Add registers a new active session under its id. Returns false if the
// table is draining, meaning no new sessions should be accepted.
func (t *SessionTable) Add(id string, s *chatSession) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining {
		return false
	}
	t.sessions[id] = s
	t.wg.Add(1)
	return true
}

// Remove drops a session and its history. Must be called exactly once per
// successful Add.
func (t *SessionTable) Remove(id string) {
	t.mu.Lock()
	_, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if ok {
		t.wg.Done()
	}
}

// Get returns the session for an id, or nil.
func (t *SessionTable) Get(id string) *chatSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[id]
}

// Len returns the number of active sessions.
func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// StartDraining sets the draining flag so that future Add calls return
// false. Safe to call concurrently with Add.
func (t *SessionTable) StartDraining() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draining = true
}

// IsDraining reports whether the table is in draining mode.
func (t *SessionTable) IsDraining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draining
}

// CloseAll closes every active session's connection so their read loops
// terminate during shutdown.
func (t *SessionTable) CloseAll() {
	t.mu.Lock()
	sessions := make([]*chatSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		s.closeConn()
	}
}

// Wait blocks until all active sessions have been removed.
func (t *SessionTable) Wait() {
	t.wg.Wait()
}
