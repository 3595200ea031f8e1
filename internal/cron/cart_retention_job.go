package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultStaleCartAge       = 90 * 24 * time.Hour
	defaultArchivedCartMaxAge = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartRetentionRepo interface {
	ArchiveStale(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	PurgeArchived(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// CartRetentionJobParams wires both retention jobs. Zero ages use defaults.
type CartRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository cartRetentionRepo
	// StaleAfter is how long an active cart may sit untouched before it is archived.
	StaleAfter time.Duration
	// PurgeAfter is how long an archived cart is kept before deletion.
	PurgeAfter time.Duration
}

func (p CartRetentionJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.DB == nil {
		return fmt.Errorf("db runner required")
	}
	if p.Repository == nil {
		return fmt.Errorf("cart repository required")
	}
	return nil
}

// NewStaleCartArchiveJob archives active carts nobody has touched within StaleAfter.
// A shopper who comes back after that starts from an empty account cart.
func NewStaleCartArchiveJob(params CartRetentionJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &retentionJob{
		name:   "stale-cart-archive",
		logg:   params.Logger,
		db:     params.DB,
		window: orDefault(params.StaleAfter, defaultStaleCartAge),
		apply:  params.Repository.ArchiveStale,
		now:    time.Now,
	}, nil
}

// NewArchivedCartPurgeJob deletes archived carts, with their items, older than PurgeAfter.
func NewArchivedCartPurgeJob(params CartRetentionJobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &retentionJob{
		name:   "archived-cart-purge",
		logg:   params.Logger,
		db:     params.DB,
		window: orDefault(params.PurgeAfter, defaultArchivedCartMaxAge),
		apply:  params.Repository.PurgeArchived,
		now:    time.Now,
	}, nil
}

type retentionJob struct {
	name   string
	logg   *logger.Logger
	db     txRunner
	window time.Duration
	apply  func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	now    func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	var affected int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.apply(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		affected = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"rows_affected": affected,
	}), "cart retention pass complete")
	return nil
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
