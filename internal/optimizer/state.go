package optimizer

import (
	"errors"
	"fmt"
)

// State is where a false-position run is in its lifecycle.
type State int

const (
	StateIterating State = iota
	StateConverged
	StateExhausted
	StateUnbracketed
	StateFailed
)

var stateNames = [...]string{
	StateIterating:   "iterating",
	StateConverged:   "converged",
	StateExhausted:   "exhausted",
	StateUnbracketed: "unbracketed",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// Reason tells why a run left StateIterating.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonTolerance     Reason = "tolerance"
	ReasonExactRoot     Reason = "exact_root"
	ReasonZeroEstimate  Reason = "zero_estimate"
	ReasonMaxIterations Reason = "max_iterations"
	ReasonSafetyCap     Reason = "safety_cap"
	ReasonUnbracketed   Reason = "unbracketed"
	ReasonDegenerate    Reason = "degenerate"
	ReasonNonFinite     Reason = "non_finite"
)

// event is what one pass of the loop observed.
type event int

const (
	evContinue event = iota
	evUnbracketed
	evDegenerate
	evNonFinite
	evToleranceMet
	evExactRoot
	evZeroEstimate
	evMaxIterations
	evSafetyCap
	evAborted
)

type transition struct {
	to     State
	reason Reason
}

// transitions is the only place that decides how a run ends.
// States missing from the table are terminal.
var transitions = map[State]map[event]transition{
	StateIterating: {
		evContinue:      {StateIterating, ReasonNone},
		evUnbracketed:   {StateUnbracketed, ReasonUnbracketed},
		evDegenerate:    {StateFailed, ReasonDegenerate},
		evNonFinite:     {StateFailed, ReasonNonFinite},
		evToleranceMet:  {StateConverged, ReasonTolerance},
		evExactRoot:     {StateConverged, ReasonExactRoot},
		evZeroEstimate:  {StateConverged, ReasonZeroEstimate},
		evMaxIterations: {StateExhausted, ReasonMaxIterations},
		evSafetyCap:     {StateExhausted, ReasonSafetyCap},
		evAborted:       {StateFailed, ReasonNone},
	},
}

func step(s State, ev event) (State, Reason) {
	t, ok := transitions[s][ev]
	if !ok {
		return s, ReasonNone
	}
	return t.to, t.reason
}

// StateOf classifies a run error into the terminal state it represents.
func StateOf(err error) State {
	s, _ := Classify(err)
	return s
}

// Classify maps a run error through the transition table. A nil error
// leaves the run iterating.
func Classify(err error) (State, Reason) {
	ev := evContinue
	switch {
	case err == nil:
	case errors.Is(err, ErrUnbracketed):
		ev = evUnbracketed
	case errors.Is(err, ErrDegenerateInterval):
		ev = evDegenerate
	case errors.Is(err, ErrNonFinite):
		ev = evNonFinite
	default:
		ev = evAborted
	}
	return step(StateIterating, ev)
}
