package product

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/cartmerge"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads the catalog data the cart depends on.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a single product.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Upsert inserts the product or refreshes its title, limit and status.
func (r *Repository) Upsert(ctx context.Context, product *models.Product) error {
	if product.ID <= 0 {
		return fmt.Errorf("product id must be positive")
	}
	if product.MaxQty < 0 {
		return fmt.Errorf("product max_qty must not be negative")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "max_qty", "is_active", "updated_at"}),
		}).
		Create(product).Error
}

// ListByIDs returns the products matching ids, ordered by id. Unknown ids are skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ?", uniqueIDs(ids)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ConstraintsFor returns merge constraints for every known product in ids.
// A max_qty of zero means the product has no cap. Inactive products keep
// their display name so conflicts on them stay readable.
func (r *Repository) ConstraintsFor(ctx context.Context, ids []int64) (cartmerge.Constraints, error) {
	rows, err := r.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load product constraints: %w", err)
	}
	constraints := make(cartmerge.Constraints, len(rows))
	for _, row := range rows {
		constraints[row.ID] = constraintFromModel(row)
	}
	return constraints, nil
}

func constraintFromModel(row models.Product) cartmerge.ProductConstraint {
	constraint := cartmerge.ProductConstraint{DisplayName: row.Title}
	if row.MaxQty > 0 {
		limit := row.MaxQty
		constraint.MaxQuantity = &limit
	}
	return constraint
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
