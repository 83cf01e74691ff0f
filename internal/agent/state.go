package agent

import "fmt"

// State is a phase of the reasoning loop
type State int

const (
	StateThinking State = iota
	StateActing
	StateDone
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateThinking:
		return "THINKING"
	case StateActing:
		return "ACTING"
	case StateDone:
		return "DONE"
	case StateExhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the loop stops in this state
func (s State) Terminal() bool {
	return s == StateDone || s == StateExhausted
}

var allowedTransitions = map[State][]State{
	StateThinking: {StateActing, StateDone, StateExhausted},
	StateActing:   {StateThinking, StateExhausted},
}

// transition moves from one state to the next, rejecting moves the loop never makes.
func transition(from, to State) (State, error) {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("invalid state transition %s -> %s", from, to)
}
