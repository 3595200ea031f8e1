package cartmerge

import (
	"errors"
	"fmt"
)

// Merge steps reported by MergeError.
const (
	StepIndex    = "index"
	StepResolve  = "resolve"
	StepValidate = "validate"
	StepSummary  = "summary"
)

// MergeError wraps any failure raised inside the merge engine so callers can
// tell engine faults apart from I/O errors around it.
type MergeError struct {
	Step  string
	Cause error
}

func (e *MergeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("cart merge failed during %s", e.Step)
	}
	return fmt.Sprintf("cart merge failed during %s: %v", e.Step, e.Cause)
}

func (e *MergeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// AsMergeError extracts a *MergeError from the chain, or nil.
func AsMergeError(err error) *MergeError {
	var typed *MergeError
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

func newMergeError(step string, cause error) *MergeError {
	return &MergeError{Step: step, Cause: cause}
}
