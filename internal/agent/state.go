package agent

// State is the lifecycle state of a run
type State int

const (
	StateIdle State = iota
	StateRunning
	StateTerminated
	StateFailed
	StateExhaustedSteps
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	case StateExhaustedSteps:
		return "exhausted_steps"
	}
	return "unknown"
}

// Final reports whether no transition leaves s
func (s State) Final() bool {
	return s == StateTerminated || s == StateFailed || s == StateExhaustedSteps
}

// ParseState is the inverse of State.String
func ParseState(s string) (State, bool) {
	for st := StateIdle; st <= StateExhaustedSteps; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateIdle, false
}

// OutcomeKind tags a StepOutcome
type OutcomeKind int

const (
	OutcomeContinued OutcomeKind = iota
	OutcomeTerminated
	OutcomeFailed
	OutcomeExhausted
)

// StepOutcome is produced once per step and decides whether the loop goes on
type StepOutcome struct {
	Kind OutcomeKind
	// Message is the termination message for OutcomeTerminated
	Message string
	// Err is the fatal error for OutcomeFailed
	Err error
}

func continued() StepOutcome { return StepOutcome{Kind: OutcomeContinued} }

func terminated(msg string) StepOutcome { return StepOutcome{Kind: OutcomeTerminated, Message: msg} }

func failed(err error) StepOutcome { return StepOutcome{Kind: OutcomeFailed, Err: err} }
