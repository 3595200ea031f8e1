package cartmerge

import (
	"fmt"
	"math"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// resolution is the tagged outcome of a single conflict decision.
type resolution struct {
	quantity int
	label    enums.ConflictResolution
}

// largeGapRatio is the hi/lo quantity ratio above which SMART treats one side as stale.
const largeGapRatio = 2

func resolveConflict(strategy enums.MergeStrategy, local, backend int, maxQty int, capped bool) (resolution, error) {
	switch strategy {
	case enums.MergeStrategyConservative:
		return resolution{quantity: max(local, backend), label: enums.ConflictResolutionKeepHigher}, nil
	case enums.MergeStrategyAggressive:
		return resolution{quantity: cappedSum(local, backend, maxQty, capped), label: enums.ConflictResolutionSumQuantities}, nil
	case enums.MergeStrategySmart:
		return resolveSmart(local, backend, maxQty, capped), nil
	default:
		return resolution{}, fmt.Errorf("unsupported merge strategy %q", strategy)
	}
}

func resolveSmart(local, backend int, maxQty int, capped bool) resolution {
	if local == backend {
		return resolution{quantity: local, label: enums.ConflictResolutionKeepLocal}
	}

	hi, lo := max(local, backend), min(local, backend)
	if exceedsRatio(hi, lo, largeGapRatio) {
		if hi == local {
			return resolution{quantity: local, label: enums.ConflictResolutionKeepLocal}
		}
		return resolution{quantity: backend, label: enums.ConflictResolutionKeepBackend}
	}

	return resolution{quantity: cappedSum(local, backend, maxQty, capped), label: enums.ConflictResolutionSumQuantities}
}

// exceedsRatio reports hi/lo > ratio without floating point or overflow. A
// zero lo with a positive hi is an infinite ratio; a negative lo yields a
// non-positive or sub-unit ratio and never exceeds.
func exceedsRatio(hi, lo, ratio int) bool {
	switch {
	case lo > 0:
		q, r := hi/lo, hi%lo
		return q > ratio || (q == ratio && r > 0)
	case lo == 0:
		return hi > 0
	default:
		return false
	}
}

// cappedSum adds both quantities, saturating at the int range, and applies
// the product cap when one is set.
func cappedSum(local, backend int, maxQty int, capped bool) int {
	sum := saturatingAdd(local, backend)
	if capped && sum > maxQty {
		return maxQty
	}
	return sum
}

func saturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	default:
		return a + b
	}
}
