package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository exposes persistence operations for account carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.Status == "" {
		cart.Status = enums.CartStatusActive
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindActiveByUser loads the active cart for the user with items in line order.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ReplaceItems swaps every item of the cart for the provided set and bumps
// the cart's updated_at, which the retention sweep reads.
func (r *Repository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now()).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].CartID = cartID
	}
	return tx.Create(&items).Error
}

// MarkMerged stamps the cart with the time and strategy of its latest merge.
func (r *Repository) MarkMerged(ctx context.Context, cartID uuid.UUID, strategy enums.MergeStrategy, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"last_merged_at":      at,
			"last_merge_strategy": strategy,
		}).Error
}

// ArchiveStale archives active carts not updated since cutoff.
func (r *Repository) ArchiveStale(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&models.Cart{}).
		Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
		Update("status", enums.CartStatusArchived)
	return result.RowsAffected, result.Error
}

// PurgeArchived deletes archived carts last updated before cutoff, items first.
func (r *Repository) PurgeArchived(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.conn(tx).WithContext(ctx)
	expired := db.Model(&models.Cart{}).
		Select("id").
		Where("status = ? AND updated_at < ?", enums.CartStatusArchived, cutoff)
	if err := db.Where("cart_id IN (?)", expired).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	result := db.Where("status = ? AND updated_at < ?", enums.CartStatusArchived, cutoff).Delete(&models.Cart{})
	return result.RowsAffected, result.Error
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
