package enums

import "fmt"

// CartAdjustmentReason enumerates why a merge dropped or altered a line.
type CartAdjustmentReason string

const (
	CartAdjustmentReasonNonPositive  CartAdjustmentReason = "non_positive_quantity"
	CartAdjustmentReasonClampedToMax CartAdjustmentReason = "clamped_to_max"
	CartAdjustmentReasonDuplicate    CartAdjustmentReason = "duplicate_line"

	// CartAdjustmentReasonUnknownProduct marks lines left out of the merge
	// because the catalog has no such product.
	CartAdjustmentReasonUnknownProduct CartAdjustmentReason = "unknown_product"
)

var validCartAdjustmentReasons = []CartAdjustmentReason{
	CartAdjustmentReasonNonPositive,
	CartAdjustmentReasonClampedToMax,
	CartAdjustmentReasonDuplicate,
	CartAdjustmentReasonUnknownProduct,
}

// String implements fmt.Stringer.
func (c CartAdjustmentReason) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartAdjustmentReason) IsValid() bool {
	for _, candidate := range validCartAdjustmentReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartAdjustmentReason converts raw input into a CartAdjustmentReason.
func ParseCartAdjustmentReason(value string) (CartAdjustmentReason, error) {
	for _, candidate := range validCartAdjustmentReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart adjustment reason %q", value)
}
