package sdc

import (
	"fmt"
)

// State is a step of the injection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateArmed
	StateSampling
	StateMutated
	StateAborted
	StateTerminated
)

var stateNames = []string{
	StateIdle:       "idle",
	StateArmed:      "armed",
	StateSampling:   "sampling",
	StateMutated:    "mutated",
	StateAborted:    "aborted",
	StateTerminated: "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}
