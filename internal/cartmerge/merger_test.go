package cartmerge

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestNewMergerDefaults(t *testing.T) {
	got := NewMerger().Options()
	if got.Strategy != enums.MergeStrategySmart {
		t.Fatalf("expected SMART default, got %s", got.Strategy)
	}
	if got.ConflictResolution != enums.ConflictResolutionKeepHigher {
		t.Fatalf("expected KEEP_HIGHER default, got %s", got.ConflictResolution)
	}
}

func TestMergerSettersApplyToNextCall(t *testing.T) {
	ctx := context.Background()
	m := NewMerger()
	local := []Line{{ProductID: 1, Quantity: 2}}
	backend := []Line{{ProductID: 1, Quantity: 3}}

	first, err := m.MergeCarts(ctx, local, backend, nil)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if first.Conflicts[0].FinalQuantity != 5 {
		t.Fatalf("expected SMART sum of 5, got %d", first.Conflicts[0].FinalQuantity)
	}

	if err := m.SetStrategy(enums.MergeStrategyConservative); err != nil {
		t.Fatalf("set strategy: %v", err)
	}
	if err := m.SetConflictResolution(enums.ConflictResolutionPromptUser); err != nil {
		t.Fatalf("set resolution: %v", err)
	}

	second, err := m.MergeCarts(ctx, local, backend, nil)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if second.Conflicts[0].FinalQuantity != 3 || second.Conflicts[0].Resolution != enums.ConflictResolutionKeepHigher {
		t.Fatalf("expected conservative keep-higher, got %+v", second.Conflicts[0])
	}

	// earlier results are not reprocessed
	if first.Conflicts[0].FinalQuantity != 5 {
		t.Fatalf("earlier result changed: %+v", first.Conflicts[0])
	}
	if got := m.Options().ConflictResolution; got != enums.ConflictResolutionPromptUser {
		t.Fatalf("expected PROMPT_USER, got %s", got)
	}
}

func TestMergerRejectsUnknownSettings(t *testing.T) {
	m := NewMerger(WithStrategy(enums.MergeStrategyAggressive))
	if err := m.SetStrategy("NOPE"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	if err := m.SetConflictResolution("NOPE"); err == nil {
		t.Fatal("expected error for unknown resolution")
	}
	if got := m.Options().Strategy; got != enums.MergeStrategyAggressive {
		t.Fatalf("rejected setter must not change strategy, got %s", got)
	}
}

func TestMergerLogsClampWarnings(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf})
	m := NewMerger(WithLogger(logg))

	limit := 2
	if _, err := m.MergeCarts(context.Background(), []Line{{ProductID: 9, Quantity: 5}}, nil, Constraints{9: {MaxQuantity: &limit}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "cart.merge.quantity_clamped") {
		t.Fatalf("expected clamp warning, got %s", out)
	}
	if !strings.Contains(out, `"product_id":9`) {
		t.Fatalf("expected product id in clamp warning, got %s", out)
	}
}

func TestMergerConcurrentUse(t *testing.T) {
	m := NewMerger()
	local := []Line{{ProductID: 1, Quantity: 2}}
	backend := []Line{{ProductID: 1, Quantity: 3}}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	finals := make(chan int, 16)
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			strategy := enums.MergeStrategySmart
			if i%2 == 0 {
				strategy = enums.MergeStrategyAggressive
			}
			_ = m.SetStrategy(strategy)
		}(i)
		go func() {
			defer wg.Done()
			res, err := m.MergeCarts(context.Background(), local, backend, nil)
			if err != nil {
				errs <- err
				return
			}
			finals <- res.Conflicts[0].FinalQuantity
		}()
	}
	wg.Wait()
	close(errs)
	close(finals)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	for final := range finals {
		if final != 5 {
			t.Fatalf("both strategies sum 2 and 3, got %d", final)
		}
	}
}

func TestMergeCartsWithOverridesPolicy(t *testing.T) {
	m := NewMerger()
	res, err := m.MergeCartsWith(context.Background(),
		[]Line{{ProductID: 1, Quantity: 2}},
		[]Line{{ProductID: 1, Quantity: 3}},
		nil,
		Options{Strategy: enums.MergeStrategyConservative},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Conflicts[0].FinalQuantity != 3 {
		t.Fatalf("expected per-call conservative policy, got %d", res.Conflicts[0].FinalQuantity)
	}
	if got := m.Options().Strategy; got != enums.MergeStrategySmart {
		t.Fatalf("per-call options must not change the merger, got %s", got)
	}
}
