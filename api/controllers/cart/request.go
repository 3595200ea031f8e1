package cart

import (
	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cartmerge"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func toLines(items []cartdto.CartLine) []cartmerge.Line {
	lines := make([]cartmerge.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, cartmerge.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func toMergeInput(payload cartdto.MergeCartRequest) (cartsvc.MergeInput, error) {
	local := make([]cartmerge.Line, 0, len(payload.LocalCart))
	for _, item := range payload.LocalCart {
		local = append(local, cartmerge.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	input := cartsvc.MergeInput{LocalCart: local}

	if payload.Strategy != nil {
		strategy, err := enums.ParseMergeStrategy(*payload.Strategy)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid strategy").
				WithDetails(map[string]string{"strategy": "must be one of [CONSERVATIVE AGGRESSIVE SMART]"})
		}
		input.Strategy = &strategy
	}
	if payload.ConflictResolution != nil {
		resolution, err := enums.ParseConflictResolution(*payload.ConflictResolution)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid conflict_resolution").
				WithDetails(map[string]string{"conflict_resolution": "must be one of [KEEP_HIGHER KEEP_LOCAL KEEP_BACKEND SUM_QUANTITIES PROMPT_USER]"})
		}
		input.ConflictResolution = &resolution
	}
	return input, nil
}
