package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cartmerge"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	mergeLockTTL         = 30 * time.Second
	activeCartConstraint = "carts_one_active_per_user"
	maxCartLines         = 500
	// maxStoredQuantity matches the INTEGER cart_items.quantity column.
	maxStoredQuantity    = math.MaxInt32
)

// Service exposes account cart operations.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ReplaceCart(ctx context.Context, userID uuid.UUID, lines []cartmerge.Line) (*models.Cart, error)
	MergeGuestCart(ctx context.Context, userID uuid.UUID, input MergeInput) (*MergeOutcome, error)
}

// ServiceParams bundles the dependencies required to build a cart service.
// Locker and Metrics are optional.
type ServiceParams struct {
	Repo     CartRepository
	Tx       txRunner
	Products constraintLoader
	Merger   cartMerger
	Locker   mergeLocker
	Metrics  mergeRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products constraintLoader
	merger   cartMerger
	locker   mergeLocker
	metrics  mergeRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product constraint loader required")
	}
	if params.Merger == nil {
		return nil, fmt.Errorf("cart merger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		products: params.Products,
		merger:   params.Merger,
		locker:   params.Locker,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// MergeInput carries the guest cart and an optional per-request policy.
type MergeInput struct {
	LocalCart          []cartmerge.Line
	Strategy           *enums.MergeStrategy
	ConflictResolution *enums.ConflictResolution
}

// MergeOutcome is the persisted cart plus the engine report that produced it.
type MergeOutcome struct {
	Cart    *models.Cart
	Result  *cartmerge.Result
	Options cartmerge.Options
}

// GetCart returns the user's active cart.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// ReplaceCart stores lines as the user's account cart. Every product must be
// known and every quantity must respect the product limit.
func (s *service) ReplaceCart(ctx context.Context, userID uuid.UUID, lines []cartmerge.Line) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	constraints, err := s.products.ConstraintsFor(ctx, productIDs(lines))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product constraints")
	}
	if err := checkAgainstConstraints(lines, constraints); err != nil {
		return nil, err
	}

	var saved *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		saved, txErr = s.storeLines(ctx, s.repo.WithTx(tx), userID, lines, nil)
		return txErr
	})
	if err != nil {
		return nil, persistenceError(err, "replace cart")
	}

	ctx = s.logg.WithCartID(ctx, saved.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "lines", len(lines)), "cart.replaced")
	return saved, nil
}

// MergeGuestCart reconciles the guest cart with the user's account cart and
// persists the merged lines. When persistence fails the caller should keep
// its local cart; the account cart is left untouched.
func (s *service) MergeGuestCart(ctx context.Context, userID uuid.UUID, input MergeInput) (*MergeOutcome, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.LocalCart) > maxCartLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("local cart exceeds %d lines", maxCartLines))
	}
	opts, err := s.resolveOptions(input)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	ctx = s.logg.WithMergePolicy(ctx, opts.Strategy.String(), opts.ConflictResolution.String())

	release, err := s.acquireLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	started := s.now()
	outcome, err := s.merge(ctx, userID, input.LocalCart, opts)
	elapsed := s.now().Sub(started)
	if err != nil {
		s.observe(opts.Strategy, metrics.OutcomeFailure, elapsed)
		return nil, err
	}
	s.observe(opts.Strategy, metrics.OutcomeSuccess, elapsed)
	s.recordResult(outcome.Result)

	summary := outcome.Result.Summary
	ctx = s.logg.WithCartID(ctx, outcome.Cart.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"conflicts_resolved": summary.ConflictsResolved,
		"items_added":        summary.ItemsAdded,
		"items_updated":      summary.ItemsUpdated,
		"items_removed":      summary.ItemsRemoved,
		"adjustments":        len(outcome.Result.Adjustments),
		"duration_ms":        elapsed.Milliseconds(),
	}), "cart.merge.completed")
	return outcome, nil
}

func (s *service) merge(ctx context.Context, userID uuid.UUID, local []cartmerge.Line, opts cartmerge.Options) (*MergeOutcome, error) {
	existing, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account cart")
	}
	backend := linesFromCart(existing)

	constraints, err := s.products.ConstraintsFor(ctx, productIDs(local, backend))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product constraints")
	}
	constraints = withStorageCeiling(constraints)

	// Lines the catalog does not know would be persisted but rejected by
	// ReplaceCart, so they never reach the engine.
	local, skippedLocal := knownLines(local, constraints)
	backend, skippedBackend := knownLines(backend, constraints)
	skipped := append(skippedLocal, skippedBackend...)

	result, err := s.merger.MergeCartsWith(ctx, local, backend, constraints, opts)
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeCartMerge, err, "merge carts")
		if mergeErr := cartmerge.AsMergeError(err); mergeErr != nil {
			wrapped = wrapped.WithDetails(map[string]any{"step": mergeErr.Step})
		}
		s.logg.Error(ctx, "cart.merge.failed", err)
		return nil, wrapped
	}
	if len(skipped) > 0 {
		result.Adjustments = append(skipped, result.Adjustments...)
		s.logg.Warn(s.logg.WithField(ctx, "skipped_lines", len(skipped)), "cart.merge.unknown_products_skipped")
	}

	mergedAt := s.now().UTC()
	var saved *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var txErr error
		saved, txErr = s.storeLines(ctx, repo, userID, result.MergedCart, existing)
		if txErr != nil {
			return txErr
		}
		if txErr = repo.MarkMerged(ctx, saved.ID, opts.Strategy, mergedAt); txErr != nil {
			return txErr
		}
		saved.LastMergedAt = &mergedAt
		strategy := opts.Strategy
		saved.LastMergeStrategy = &strategy
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "cart.merge.persist_failed", err)
		return nil, persistenceError(err, "persist merged cart")
	}

	return &MergeOutcome{Cart: saved, Result: result, Options: opts}, nil
}

// storeLines writes lines into the user's active cart, creating it when
// needed. existing short-circuits the lookup when the caller already has it.
func (s *service) storeLines(ctx context.Context, repo CartRepository, userID uuid.UUID, lines []cartmerge.Line, existing *models.Cart) (*models.Cart, error) {
	cart := existing
	if cart == nil {
		found, err := repo.FindActiveByUser(ctx, userID)
		switch {
		case err == nil:
			cart = found
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, createErr := repo.Create(ctx, &models.Cart{UserID: userID, Status: enums.CartStatusActive})
			if createErr != nil {
				return nil, createErr
			}
			cart = created
		default:
			return nil, err
		}
	}

	items := itemsFromLines(lines)
	if err := repo.ReplaceItems(ctx, cart.ID, items); err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

func (s *service) resolveOptions(input MergeInput) (cartmerge.Options, error) {
	opts := s.merger.Options()
	if input.Strategy != nil {
		if !input.Strategy.IsValid() {
			return opts, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid merge strategy %q", *input.Strategy))
		}
		opts.Strategy = *input.Strategy
	}
	if input.ConflictResolution != nil {
		if !input.ConflictResolution.IsValid() {
			return opts, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid conflict resolution %q", *input.ConflictResolution))
		}
		opts.ConflictResolution = *input.ConflictResolution
	}
	return opts, nil
}

func (s *service) acquireLock(ctx context.Context, userID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	ok, err := s.locker.AcquireMergeLock(ctx, userID.String(), mergeLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire merge lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cart merge is already in progress")
	}
	return func() {
		if err := s.locker.ReleaseMergeLock(context.WithoutCancel(ctx), userID.String()); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.merge.lock_release_failed")
		}
	}, nil
}

func (s *service) observe(strategy enums.MergeStrategy, outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveMerge(strategy.String(), outcome, elapsed)
}

func (s *service) recordResult(result *cartmerge.Result) {
	if s.metrics == nil || result == nil {
		return
	}
	for _, conflict := range result.Conflicts {
		s.metrics.IncConflict(conflict.Resolution.String())
	}
	clamped := 0
	for _, adj := range result.Adjustments {
		if adj.Reason == enums.CartAdjustmentReasonClampedToMax {
			clamped++
		}
	}
	s.metrics.AddClamped(clamped)
}

func persistenceError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsUniqueViolation(err, activeCartConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was modified concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func validateLines(lines []cartmerge.Line) error {
	if len(lines) > maxCartLines {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart exceeds %d lines", maxCartLines))
	}
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "product_id must be positive")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if line.Quantity > maxStoredQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity too large").
				WithDetails(map[string]any{"product_id": line.ProductID, "max_quantity": maxStoredQuantity})
		}
		if _, dup := seen[line.ProductID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in cart").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

func checkAgainstConstraints(lines []cartmerge.Line, constraints cartmerge.Constraints) error {
	var unknown []int64
	for _, line := range lines {
		constraint, ok := constraints[line.ProductID]
		if !ok {
			unknown = append(unknown, line.ProductID)
			continue
		}
		if constraint.MaxQuantity != nil && line.Quantity > *constraint.MaxQuantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds product limit").
				WithDetails(map[string]any{
					"product_id":   line.ProductID,
					"max_quantity": *constraint.MaxQuantity,
				})
		}
	}
	if len(unknown) > 0 {
		sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown products in cart").
			WithDetails(map[string]any{"product_ids": unknown})
	}
	return nil
}

// withStorageCeiling caps every known product at maxStoredQuantity so merged
// sums always fit the quantity column.
func withStorageCeiling(constraints cartmerge.Constraints) cartmerge.Constraints {
	out := make(cartmerge.Constraints, len(constraints))
	for id, constraint := range constraints {
		if constraint.MaxQuantity == nil || *constraint.MaxQuantity > maxStoredQuantity {
			ceiling := maxStoredQuantity
			constraint.MaxQuantity = &ceiling
		}
		out[id] = constraint
	}
	return out
}

// knownLines splits lines into those whose product is in constraints and
// adjustments for the rest.
func knownLines(lines []cartmerge.Line, constraints cartmerge.Constraints) ([]cartmerge.Line, []cartmerge.Adjustment) {
	kept := make([]cartmerge.Line, 0, len(lines))
	var skipped []cartmerge.Adjustment
	for _, line := range lines {
		if _, ok := constraints[line.ProductID]; ok && line.ProductID > 0 {
			kept = append(kept, line)
			continue
		}
		skipped = append(skipped, cartmerge.Adjustment{
			ProductID: line.ProductID,
			Reason:    enums.CartAdjustmentReasonUnknownProduct,
			Before:    line.Quantity,
		})
	}
	return kept, skipped
}

func productIDs(sets ...[]cartmerge.Line) []int64 {
	seen := map[int64]struct{}{}
	var ids []int64
	for _, lines := range sets {
		for _, line := range lines {
			if _, ok := seen[line.ProductID]; ok || line.ProductID <= 0 {
				continue
			}
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

func linesFromCart(cart *models.Cart) []cartmerge.Line {
	if cart == nil {
		return nil
	}
	lines := make([]cartmerge.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, cartmerge.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func itemsFromLines(lines []cartmerge.Line) []models.CartItem {
	items := make([]models.CartItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, models.CartItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Position:  i,
		})
	}
	return items
}
