package history

import "sync"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation. Immutable once appended.
type Turn struct {
	Role    Role
	Content string
}

// DefaultMaxTurns is the sliding window size when none is configured.
const DefaultMaxTurns = 20

// History is a bounded, ordered log of turns owned by one session. When
// the log exceeds maxTurns the oldest turns are evicted first. There is
// no summarization and nothing survives the session.
type History struct {
	mu       sync.Mutex
	turns    []Turn
	maxTurns int
}

// New creates a history with the given window size. Non-positive values
// fall back to DefaultMaxTurns.
func New(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &History{maxTurns: maxTurns}
}

// Append adds a turn, then trims from the front until the length is
// within the window.
func (h *History) Append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{Role: role, Content: content})
	if len(h.turns) > h.maxTurns {
		// Reallocate so the evicted turns do not pin the backing array.
		h.turns = append([]Turn(nil), h.turns[len(h.turns)-h.maxTurns:]...)
	}
}

// Snapshot returns a copy of the turns in append order. The copy is safe
// to use as prompt context while the log keeps mutating.
func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Clear empties the log.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// Size returns the current number of turns.
func (h *History) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
