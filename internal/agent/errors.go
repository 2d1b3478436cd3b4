package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned when a run is started without a usable prompt
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrRunStarted is returned when Start is called on a run that already left Idle
	ErrRunStarted = errors.New("run already started")
	// ErrStepBudgetExceeded marks an ExhaustedSteps result. It is never returned
	// from Start; it is set on Result.Err for inspection.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
)

// ModelUnavailableError means the model could not produce a decision.
// It ends the run in the Failed state.
type ModelUnavailableError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s/%s unavailable: %v", e.Provider, e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }
