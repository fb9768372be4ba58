package filterapi

import "fmt"

// State is the lifecycle position of one pipeline step.
type State uint8

// Step states.
const (
	StateUnvalidated State = iota
	StatePreflighted
	StateCommitted
	StateExecuted
	StateFailed
	StateCanceled
)

var stateNames = [...]string{
	StateUnvalidated: "unvalidated",
	StatePreflighted: "preflighted",
	StateCommitted:   "committed",
	StateExecuted:    "executed",
	StateFailed:      "failed",
	StateCanceled:    "canceled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("filterapi: unknown step state %q", s)
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateExecuted, StateFailed, StateCanceled:
		return true
	}
	return false
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateUnvalidated:
		return to == StatePreflighted || to == StateFailed || to == StateCanceled
	case StatePreflighted:
		return to == StateCommitted || to == StateFailed || to == StateCanceled
	case StateCommitted:
		return to == StateExecuted || to == StateFailed || to == StateCanceled
	}
	return false
}

// Lifecycle tracks the state of one step and the path it took.
type Lifecycle struct {
	state   State
	history []State
}

// State returns the current state.
func (l *Lifecycle) State() State { return l.state }

// History returns every state entered after the initial one.
func (l *Lifecycle) History() []State { return append([]State(nil), l.history...) }

// Transition moves from the expected state from to to. It fails without
// changing anything when the current state differs from from or the move is
// not allowed.
func (l *Lifecycle) Transition(from, to State) error {
	if l.state != from {
		return fmt.Errorf("filterapi: invalid transition: expected %s, got %s", from, l.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("filterapi: disallowed transition %s -> %s", from, to)
	}
	l.state = to
	l.history = append(l.history, to)
	return nil
}

// Advance transitions from the current state.
func (l *Lifecycle) Advance(to State) error { return l.Transition(l.state, to) }
