package models

// Outcome classifies the result of a single automation-level operation.
type Outcome int

const (
	OutcomeOK        Outcome = iota
	OutcomeTransient         // failed after retries; caller skips and moves on
	OutcomePermanent         // will never succeed (dead candidate, already visited)
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// TerminalState is the reason a harvest loop stopped.
type TerminalState int

const (
	StateNoReviews TerminalState = iota
	StateStagnant
	StateHintReached
	StateTimedOut
	StateMaxSteps
)

func (s TerminalState) String() string {
	switch s {
	case StateNoReviews:
		return "NO_REVIEWS"
	case StateStagnant:
		return "STAGNANT"
	case StateHintReached:
		return "HINT_REACHED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateMaxSteps:
		return "MAX_STEPS"
	default:
		return "UNKNOWN"
	}
}
