package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Cart is the account-scoped cart persisted for an authenticated shopper.
type Cart struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.CartStatus     `gorm:"column:status;not null;default:'active'"`
	LastMergedAt      *time.Time           `gorm:"column:last_merged_at"`
	LastMergeStrategy *enums.MergeStrategy `gorm:"column:last_merge_strategy"`
	Items             []CartItem           `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }

// BeforeCreate assigns an id when the caller did not.
func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = enums.CartStatusActive
	}
	return nil
}
