package refactor

import (
	"pyrefactor/internal/core/errors"
)

// State is a step of the refactoring pipeline.
type State uint8

const (
	StateIdle State = iota
	StateParsed
	StateRenamePass
	StateConditionalPass
	StateDuplicatePass
	StateDeadCodePass
	StateExtractPass
	StatePrinted
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "Idle",
	StateParsed:          "Parsed",
	StateRenamePass:      "RenamePass",
	StateConditionalPass: "ConditionalPass",
	StateDuplicatePass:   "DuplicatePass",
	StateDeadCodePass:    "DeadCodePass",
	StateExtractPass:     "ExtractPass",
	StatePrinted:         "Printed",
	StateDone:            "Done",
	StateFailed:          "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next is the only forward transition from each non-terminal state.
var next = map[State]State{
	StateIdle:            StateParsed,
	StateParsed:          StateRenamePass,
	StateRenamePass:      StateConditionalPass,
	StateConditionalPass: StateDuplicatePass,
	StateDuplicatePass:   StateDeadCodePass,
	StateDeadCodePass:    StateExtractPass,
	StateExtractPass:     StatePrinted,
	StatePrinted:         StateDone,
}

// machine records a strictly sequential walk through the states.
type machine struct {
	state State
	trace []State
}

func newMachine() *machine {
	return &machine{state: StateIdle, trace: []State{StateIdle}}
}

func (m *machine) advance(to State) error {
	ok := false
	switch {
	case m.state.Terminal():
	case to == StateFailed:
		ok = true
	default:
		ok = next[m.state] == to
	}
	if !ok {
		return errors.Newf(errors.CodeInvalidStateTransition, "cannot move from %s to %s", m.state, to)
	}
	m.state = to
	m.trace = append(m.trace, to)
	return nil
}
