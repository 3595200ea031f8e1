package cartmerge

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// resolve is a variable so tests can inject a faulting resolver.
var resolve = resolveConflict

// Merge reconciles the local (guest) cart with the backend (account) cart.
//
// Local lines are walked first and keep their order; backend-only lines follow
// in backend order. Non-positive quantities are dropped and quantities above a
// product's MaxQuantity are clamped before the result is returned. Any internal
// fault, including a panic, surfaces as *MergeError.
func Merge(local, backend []Line, constraints Constraints, opts Options) (result *Result, err error) {
	opts = opts.withDefaults()
	step := StepIndex

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = newMergeError(step, fmt.Errorf("panic: %v", rec))
		}
	}()

	if !opts.Strategy.IsValid() {
		return nil, newMergeError(StepResolve, fmt.Errorf("invalid merge strategy %q", opts.Strategy))
	}
	if !opts.ConflictResolution.IsValid() {
		return nil, newMergeError(StepResolve, fmt.Errorf("invalid conflict resolution %q", opts.ConflictResolution))
	}

	backendByID := make(map[int64]Line, len(backend))
	for _, line := range backend {
		backendByID[line.ProductID] = line
	}

	step = StepResolve
	merged := make([]Line, 0, len(local)+len(backend))
	conflicts := make([]Conflict, 0)
	processed := make(map[int64]struct{}, len(local))

	for _, line := range local {
		backendLine, inBackend := backendByID[line.ProductID]
		if inBackend {
			maxQty, capped := constraints.maxQuantity(line.ProductID)
			res, resolveErr := resolve(opts.Strategy, line.Quantity, backendLine.Quantity, maxQty, capped)
			if resolveErr != nil {
				return nil, newMergeError(step, resolveErr)
			}
			conflicts = append(conflicts, Conflict{
				ProductID:       line.ProductID,
				ProductName:     constraints.displayName(line.ProductID),
				LocalQuantity:   line.Quantity,
				BackendQuantity: backendLine.Quantity,
				Resolution:      res.label,
				FinalQuantity:   res.quantity,
			})
			merged = append(merged, Line{ProductID: line.ProductID, Quantity: res.quantity})
		} else {
			merged = append(merged, line)
		}
		processed[line.ProductID] = struct{}{}
	}

	for _, line := range backend {
		if _, done := processed[line.ProductID]; done {
			continue
		}
		merged = append(merged, line)
	}

	step = StepValidate
	validated, adjustments := validateLines(merged, constraints)

	step = StepSummary
	summary := summarize(local, len(backend), backendByID, conflicts)

	return &Result{
		MergedCart:  validated,
		Conflicts:   conflicts,
		Summary:     summary,
		Adjustments: adjustments,
	}, nil
}

// validateLines drops non-positive quantities, clamps to MaxQuantity and keeps
// only the first line per product.
func validateLines(lines []Line, constraints Constraints) ([]Line, []Adjustment) {
	out := make([]Line, 0, len(lines))
	adjustments := make([]Adjustment, 0)
	seen := make(map[int64]struct{}, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			adjustments = append(adjustments, Adjustment{
				ProductID: line.ProductID,
				Reason:    enums.CartAdjustmentReasonNonPositive,
				Before:    line.Quantity,
			})
			continue
		}
		if _, dup := seen[line.ProductID]; dup {
			adjustments = append(adjustments, Adjustment{
				ProductID: line.ProductID,
				Reason:    enums.CartAdjustmentReasonDuplicate,
				Before:    line.Quantity,
			})
			continue
		}
		seen[line.ProductID] = struct{}{}

		if maxQty, capped := constraints.maxQuantity(line.ProductID); capped && line.Quantity > maxQty {
			adjustments = append(adjustments, Adjustment{
				ProductID: line.ProductID,
				Reason:    enums.CartAdjustmentReasonClampedToMax,
				Before:    line.Quantity,
				After:     max(maxQty, 0),
			})
			if maxQty <= 0 {
				continue
			}
			line.Quantity = maxQty
		}
		out = append(out, line)
	}
	return out, adjustments
}

// summarize counts over the raw inputs, not the validated output.
func summarize(local []Line, backendLen int, backendByID map[int64]Line, conflicts []Conflict) Summary {
	added := 0
	for _, line := range local {
		if _, ok := backendByID[line.ProductID]; !ok {
			added++
		}
	}
	return Summary{
		TotalItems:        len(local) + backendLen,
		ConflictsResolved: len(conflicts),
		ItemsAdded:        added,
		ItemsUpdated:      len(conflicts),
		ItemsRemoved:      0,
	}
}
