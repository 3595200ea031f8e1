package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cartmerge"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error
	MarkMerged(ctx context.Context, cartID uuid.UUID, strategy enums.MergeStrategy, at time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type constraintLoader interface {
	ConstraintsFor(ctx context.Context, ids []int64) (cartmerge.Constraints, error)
}

type cartMerger interface {
	Options() cartmerge.Options
	MergeCartsWith(ctx context.Context, local, backend []cartmerge.Line, constraints cartmerge.Constraints, opts cartmerge.Options) (*cartmerge.Result, error)
}

type mergeLocker interface {
	AcquireMergeLock(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	ReleaseMergeLock(ctx context.Context, userID string) error
}

type mergeRecorder interface {
	ObserveMerge(strategy, outcome string, elapsed time.Duration)
	IncConflict(resolution string)
	AddClamped(n int)
}
