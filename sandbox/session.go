package sandbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State tracks a session through its lifecycle.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one run of one cell. It moves Created→Running exactly once and
// then into exactly one terminal state; terminal states are final.
type Session struct {
	id       uuid.UUID
	deadline time.Time

	mu       sync.Mutex
	state    State
	terminal bool
}

func newSession(deadline time.Time) *Session {
	return &Session{
		id:       uuid.New(),
		deadline: deadline,
		state:    StateCreated,
	}
}

// ID identifies the session for the host and logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Deadline is the instant after which the run is forcibly terminated.
func (s *Session) Deadline() time.Time { return s.deadline }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) start() {
	s.mu.Lock()
	if s.state == StateCreated {
		s.state = StateRunning
	}
	s.mu.Unlock()
}

// finish records the terminal state. The first caller wins; it reports
// whether this call delivered the terminal transition, so racing outcomes
// (a late frame against the deadline) collapse to a single terminal event.
func (s *Session) finish(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return false
	}
	s.terminal = true
	s.state = state
	return true
}
