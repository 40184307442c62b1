package ir

import "fmt"

// State is the deception state of a single pipeline run.
//
// States are ordered NORMAL < HONEY < BLOCKED. Within one run the state
// never moves backwards along that order.
type State int

const (
	// StateNormal is the initial state of every run.
	StateNormal State = iota

	// StateHoney is entered when any stage takes the decay path.
	StateHoney

	// StateBlocked is terminal. Only the kill switch enters it.
	StateBlocked
)

var stateNames = [...]string{
	StateNormal:  "NORMAL",
	StateHoney:   "HONEY",
	StateBlocked: "BLOCKED",
}

// String returns the upper-case state label ("NORMAL", "HONEY", "BLOCKED").
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a state label as produced by String.
func ParseState(label string) (State, error) {
	for i, name := range stateNames {
		if name == label {
			return State(i), nil
		}
	}
	return StateNormal, fmt.Errorf("unknown state %q", label)
}

// Advance returns the later of s and next. Transitions that would move the
// state backwards are absorbed.
func (s State) Advance(next State) State {
	if next > s {
		return next
	}
	return s
}

// MarshalText encodes the state as its label.
func (s State) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state label.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Outcome is the branch a stage took for one invocation.
type Outcome string

const (
	// OutcomeValid marks the authorized transform path.
	OutcomeValid Outcome = "VALID"

	// OutcomeDecay marks the decoy decay path.
	OutcomeDecay Outcome = "DECAY"
)

// OutcomeFor maps a stage's decoy flag to its outcome.
func OutcomeFor(isDecoy bool) Outcome {
	if isDecoy {
		return OutcomeDecay
	}
	return OutcomeValid
}
