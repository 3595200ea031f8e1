package enums

import (
	"fmt"
	"strings"
)

// ConflictResolution labels the outcome applied to a product present in both carts.
type ConflictResolution string

const (
	ConflictResolutionKeepHigher    ConflictResolution = "KEEP_HIGHER"
	ConflictResolutionKeepLocal     ConflictResolution = "KEEP_LOCAL"
	ConflictResolutionKeepBackend   ConflictResolution = "KEEP_BACKEND"
	ConflictResolutionSumQuantities ConflictResolution = "SUM_QUANTITIES"
	ConflictResolutionPromptUser    ConflictResolution = "PROMPT_USER"
)

var validConflictResolutions = []ConflictResolution{
	ConflictResolutionKeepHigher,
	ConflictResolutionKeepLocal,
	ConflictResolutionKeepBackend,
	ConflictResolutionSumQuantities,
	ConflictResolutionPromptUser,
}

// String implements fmt.Stringer.
func (c ConflictResolution) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConflictResolution.
func (c ConflictResolution) IsValid() bool {
	for _, candidate := range validConflictResolutions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConflictResolution converts raw input into a ConflictResolution.
func ParseConflictResolution(value string) (ConflictResolution, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validConflictResolutions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conflict resolution %q", value)
}
