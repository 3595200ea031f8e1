package cartmerge

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Merger holds a default merge policy. The policy may be changed between
// calls; each call works on a snapshot taken when it starts.
type Merger struct {
	mu   sync.RWMutex
	opts Options
	logg *logger.Logger
}

// Option customizes a Merger at construction.
type Option func(*Merger)

// WithStrategy overrides the default SMART strategy.
func WithStrategy(strategy enums.MergeStrategy) Option {
	return func(m *Merger) {
		m.opts.Strategy = strategy
	}
}

// WithConflictResolution overrides the default KEEP_HIGHER resolution policy.
func WithConflictResolution(resolution enums.ConflictResolution) Option {
	return func(m *Merger) {
		m.opts.ConflictResolution = resolution
	}
}

// WithLogger attaches a logger used for validation warnings.
func WithLogger(logg *logger.Logger) Option {
	return func(m *Merger) {
		m.logg = logg
	}
}

// NewMerger builds a Merger defaulting to SMART / KEEP_HIGHER.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{opts: DefaultOptions()}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Options returns the policy the next call will use.
func (m *Merger) Options() Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opts
}

// SetStrategy changes the strategy for subsequent calls.
func (m *Merger) SetStrategy(strategy enums.MergeStrategy) error {
	if !strategy.IsValid() {
		return fmt.Errorf("invalid merge strategy %q", strategy)
	}
	m.mu.Lock()
	m.opts.Strategy = strategy
	m.mu.Unlock()
	return nil
}

// SetConflictResolution changes the resolution policy for subsequent calls.
func (m *Merger) SetConflictResolution(resolution enums.ConflictResolution) error {
	if !resolution.IsValid() {
		return fmt.Errorf("invalid conflict resolution %q", resolution)
	}
	m.mu.Lock()
	m.opts.ConflictResolution = resolution
	m.mu.Unlock()
	return nil
}

// MergeCarts merges with the Merger's current policy.
func (m *Merger) MergeCarts(ctx context.Context, local, backend []Line, constraints Constraints) (*Result, error) {
	return m.MergeCartsWith(ctx, local, backend, constraints, m.Options())
}

// MergeCartsWith merges with an explicit policy, ignoring the Merger's own.
func (m *Merger) MergeCartsWith(ctx context.Context, local, backend []Line, constraints Constraints, opts Options) (*Result, error) {
	result, err := Merge(local, backend, constraints, opts)
	if err != nil {
		return nil, err
	}
	m.logAdjustments(ctx, result.Adjustments)
	return result, nil
}

func (m *Merger) logAdjustments(ctx context.Context, adjustments []Adjustment) {
	if m.logg == nil {
		return
	}
	for _, adj := range adjustments {
		if adj.Reason != enums.CartAdjustmentReasonClampedToMax {
			continue
		}
		warnCtx := m.logg.WithFields(ctx, map[string]any{
			"product_id":   adj.ProductID,
			"quantity":     adj.Before,
			"max_quantity": adj.After,
		})
		m.logg.Warn(warnCtx, "cart.merge.quantity_clamped")
	}
}
