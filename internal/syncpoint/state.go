package syncpoint

import "fmt"

// State is the lifecycle state of a synchronization point.
//
// The ordinal values are persisted in checkpoint records and must never be
// renumbered.
type State int

const (
	// StateUnregistered is the initial state after add, before the
	// federation knows about the point.
	StateUnregistered State = 0

	// StateAnnounced means the federation has announced the point and the
	// local federate may achieve it once it is due.
	StateAnnounced State = 1

	// StateAchieved means the local federate has reached the barrier and
	// is waiting for the rest of the federation.
	StateAchieved State = 2

	// StateSynchronized means the federation confirmed that every federate
	// achieved the point. Terminal.
	StateSynchronized State = 3

	// StateError means a gateway call for this point failed. Terminal, and
	// scoped to this point only.
	StateError State = 4
)

// String returns the canonical upper-case name used in logs and dumps.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateAnnounced:
		return "ANNOUNCED"
	case StateAchieved:
		return "ACHIEVED"
	case StateSynchronized:
		return "SYNCHRONIZED"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Known reports whether s is one of the defined lifecycle states. Used
// when validating checkpoint records.
func (s State) Known() bool {
	return s >= StateUnregistered && s <= StateError
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSynchronized || s == StateError
}
