package enums

import (
	"fmt"
	"strings"
)

// MergeStrategy selects the policy family used to reconcile a guest cart with
// the account cart.
type MergeStrategy string

const (
	MergeStrategyConservative MergeStrategy = "CONSERVATIVE"
	MergeStrategyAggressive   MergeStrategy = "AGGRESSIVE"
	MergeStrategySmart        MergeStrategy = "SMART"
)

var validMergeStrategies = []MergeStrategy{
	MergeStrategyConservative,
	MergeStrategyAggressive,
	MergeStrategySmart,
}

// String implements fmt.Stringer.
func (m MergeStrategy) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MergeStrategy.
func (m MergeStrategy) IsValid() bool {
	for _, candidate := range validMergeStrategies {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMergeStrategy converts raw input into a MergeStrategy. Matching is case-insensitive.
func ParseMergeStrategy(value string) (MergeStrategy, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validMergeStrategies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merge strategy %q", value)
}
