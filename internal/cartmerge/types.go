// Package cartmerge reconciles a guest cart accumulated before sign-in with the
// cart already stored for the account. It performs no I/O: callers load both
// snapshots, merge, and persist the result.
package cartmerge

import "github.com/angelmondragon/storefront-backend/pkg/enums"

// Line is one product entry in a cart snapshot.
type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// ProductConstraint carries the business limits known for a product.
type ProductConstraint struct {
	DisplayName string
	// MaxQuantity caps the quantity a cart may hold; nil means unlimited.
	MaxQuantity *int
}

// Constraints maps product ids to their constraints. A nil map is valid.
type Constraints map[int64]ProductConstraint

func (c Constraints) maxQuantity(productID int64) (int, bool) {
	constraint, ok := c[productID]
	if !ok || constraint.MaxQuantity == nil {
		return 0, false
	}
	return *constraint.MaxQuantity, true
}

func (c Constraints) displayName(productID int64) string {
	if constraint, ok := c[productID]; ok {
		return constraint.DisplayName
	}
	return ""
}

// Conflict records how one product present in both carts was reconciled.
// FinalQuantity is the resolution-time value; the validation pass may still
// clamp the merged line to the product's MaxQuantity.
type Conflict struct {
	ProductID       int64                    `json:"product_id"`
	ProductName     string                   `json:"product_name"`
	LocalQuantity   int                      `json:"local_quantity"`
	BackendQuantity int                      `json:"backend_quantity"`
	Resolution      enums.ConflictResolution `json:"resolution"`
	FinalQuantity   int                      `json:"final_quantity"`
}

// Summary aggregates counters computed from the raw inputs of one merge.
type Summary struct {
	TotalItems        int `json:"total_items"`
	ConflictsResolved int `json:"conflicts_resolved"`
	ItemsAdded        int `json:"items_added"`
	ItemsUpdated      int `json:"items_updated"`
	ItemsRemoved      int `json:"items_removed"`
}

// Adjustment describes a line dropped or altered by the validation pass, or
// left out of the merge by the caller. After is zero when the line was dropped.
type Adjustment struct {
	ProductID int64                      `json:"product_id"`
	Reason    enums.CartAdjustmentReason `json:"reason"`
	Before    int                        `json:"before"`
	After     int                        `json:"after"`
}

// Result is the output of a merge. Every slice is freshly allocated.
type Result struct {
	MergedCart  []Line       `json:"merged_cart"`
	Conflicts   []Conflict   `json:"conflicts"`
	Summary     Summary      `json:"merge_summary"`
	Adjustments []Adjustment `json:"adjustments"`
}

// Options selects the merge policy for a single call.
type Options struct {
	Strategy           enums.MergeStrategy
	ConflictResolution enums.ConflictResolution
}

// DefaultOptions returns SMART / KEEP_HIGHER.
func DefaultOptions() Options {
	return Options{
		Strategy:           enums.MergeStrategySmart,
		ConflictResolution: enums.ConflictResolutionKeepHigher,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.Strategy == "" {
		o.Strategy = defaults.Strategy
	}
	if o.ConflictResolution == "" {
		o.ConflictResolution = defaults.ConflictResolution
	}
	return o
}
