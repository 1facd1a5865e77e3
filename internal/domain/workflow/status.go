package workflow

import "fmt"

// State is the aggregate approval status of a document.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateApproved   State = "APPROVED"
	StateRejected   State = "REJECTED"
)

var validStates = map[State]bool{
	StateNotStarted: true,
	StatePending:    true,
	StateInProgress: true,
	StateApproved:   true,
	StateRejected:   true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsValid returns true if the state is a known aggregate status.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal returns true if no further transitions are allowed without a
// resubmit.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Trigger is an event that can move the aggregate status.
type Trigger string

const (
	// TriggerStart begins approval on a submitted document.
	TriggerStart Trigger = "START"
	// TriggerRecordPartial records a level-0 decision that does not close
	// the tier, or a manual-forward approval awaiting a forward.
	TriggerRecordPartial Trigger = "RECORD_PARTIAL"
	// TriggerAdvance closes the current level as approved and opens the
	// next one.
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerComplete closes the final level as approved.
	TriggerComplete Trigger = "COMPLETE"
	// TriggerReject closes the current level as rejected.
	TriggerReject Trigger = "REJECT"
	// TriggerForward moves a manual-forward document to a later level.
	TriggerForward Trigger = "FORWARD"
	// TriggerResubmit re-opens a rejected document at the rejecting level.
	TriggerResubmit Trigger = "RESUBMIT"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}

// StatusMachine tracks the aggregate status and validates transitions.
type StatusMachine struct {
	state       State
	transitions map[State]map[Trigger]State
}

// statusTransitions is the single authoritative transition table for the
// aggregate approval status.
var statusTransitions = map[State]map[Trigger]State{
	StateNotStarted: {
		TriggerStart: StatePending,
	},
	StatePending: {
		TriggerRecordPartial: StateInProgress,
		TriggerAdvance:       StatePending,
		TriggerComplete:      StateApproved,
		TriggerReject:        StateRejected,
	},
	StateInProgress: {
		TriggerRecordPartial: StateInProgress,
		TriggerAdvance:       StatePending,
		TriggerComplete:      StateApproved,
		TriggerReject:        StateRejected,
		TriggerForward:       StatePending,
	},
	StateRejected: {
		TriggerResubmit: StatePending,
	},
}

// NewStatusMachine creates a machine positioned at the given state.
func NewStatusMachine(initial State) (*StatusMachine, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initial)
	}
	return &StatusMachine{state: initial, transitions: statusTransitions}, nil
}

// State returns the current state.
func (m *StatusMachine) State() State {
	return m.state
}

// CanFire returns true if the trigger is permitted in the current state.
func (m *StatusMachine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.state][trigger]
	return ok
}

// Fire executes the trigger, moving to the new state if the transition is
// permitted.
func (m *StatusMachine) Fire(trigger Trigger) error {
	next, ok := m.transitions[m.state][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.state)
	}
	m.state = next
	return nil
}

// PermittedTriggers returns all triggers that can fire in the current state.
func (m *StatusMachine) PermittedTriggers() []Trigger {
	perms := m.transitions[m.state]
	triggers := make([]Trigger, 0, len(perms))
	for t := range perms {
		triggers = append(triggers, t)
	}
	return triggers
}
