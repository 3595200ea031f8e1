package cart

import (
	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func newCart(record *models.Cart) cartdto.Cart {
	if record == nil {
		return cartdto.Cart{Items: []cartdto.CartLine{}}
	}
	items := make([]cartdto.CartLine, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, cartdto.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	out := cartdto.Cart{
		ID:           record.ID,
		Status:       string(record.Status),
		Items:        items,
		LastMergedAt: record.LastMergedAt,
		UpdatedAt:    record.UpdatedAt,
	}
	if record.LastMergeStrategy != nil {
		strategy := record.LastMergeStrategy.String()
		out.LastMergeStrategy = &strategy
	}
	return out
}

func newMergeResponse(outcome *cartsvc.MergeOutcome) cartdto.MergeCartResponse {
	result := outcome.Result
	return cartdto.MergeCartResponse{
		MergedCart:       result.MergedCart,
		Conflicts:        result.Conflicts,
		MergeSummary:     result.Summary,
		Adjustments:      result.Adjustments,
		Strategy:         outcome.Options.Strategy.String(),
		ResolutionPolicy: outcome.Options.ConflictResolution.String(),
		Cart:             newCart(outcome.Cart),
	}
}
