package cartdto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cartmerge"
)

// CartLine is one product/quantity pair on the wire.
type CartLine struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"min=1,max=2147483647"`
}

// GuestLine is a line from the guest cart. Only the range is checked here;
// the merge drops non-positive quantities and unknown products.
type GuestLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity" validate:"gte=-2147483648,lte=2147483647"`
}

// ReplaceCartRequest replaces the account cart wholesale.
type ReplaceCartRequest struct {
	Items []CartLine `json:"items" validate:"required,max=500,dive"`
}

// MergeCartRequest carries the guest cart and an optional policy override.
type MergeCartRequest struct {
	LocalCart          []GuestLine `json:"local_cart" validate:"required,max=500,dive"`
	Strategy           *string     `json:"strategy,omitempty"`
	ConflictResolution *string     `json:"conflict_resolution,omitempty"`
}

// Cart is the account cart as returned to clients.
type Cart struct {
	ID                uuid.UUID  `json:"id"`
	Status            string     `json:"status"`
	Items             []CartLine `json:"items"`
	LastMergedAt      *time.Time `json:"last_merged_at,omitempty"`
	LastMergeStrategy *string    `json:"last_merge_strategy,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// MergeCartResponse is the merge report plus the persisted cart.
type MergeCartResponse struct {
	MergedCart       []cartmerge.Line       `json:"merged_cart"`
	Conflicts        []cartmerge.Conflict   `json:"conflicts"`
	MergeSummary     cartmerge.Summary      `json:"merge_summary"`
	Adjustments      []cartmerge.Adjustment `json:"adjustments"`
	Strategy         string                 `json:"strategy"`
	ResolutionPolicy string                 `json:"resolution_policy"`
	Cart             Cart                   `json:"cart"`
}
