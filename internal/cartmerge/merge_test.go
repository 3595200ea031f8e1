package cartmerge

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func intPtr(v int) *int {
	return &v
}

func opts(strategy enums.MergeStrategy) Options {
	return Options{Strategy: strategy, ConflictResolution: enums.ConflictResolutionKeepHigher}
}

func TestMergeDisjointCarts(t *testing.T) {
	t.Parallel()

	local := []Line{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}
	backend := []Line{{ProductID: 3, Quantity: 4}}

	res, err := Merge(local, backend, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.MergedCart) != len(local)+len(backend) {
		t.Fatalf("expected %d lines, got %d", len(local)+len(backend), len(res.MergedCart))
	}
	if len(res.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", res.Conflicts)
	}
	if res.Summary.ItemsAdded != len(local) {
		t.Fatalf("expected items added %d, got %d", len(local), res.Summary.ItemsAdded)
	}
	want := []Line{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}, {ProductID: 3, Quantity: 4}}
	if !reflect.DeepEqual(res.MergedCart, want) {
		t.Fatalf("unexpected merged order %+v", res.MergedCart)
	}
}

func TestMergeEmptySides(t *testing.T) {
	t.Parallel()

	cart := []Line{{ProductID: 10, Quantity: 1}, {ProductID: 11, Quantity: 3}}

	res, err := Merge(nil, cart, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.MergedCart, cart) || len(res.Conflicts) != 0 {
		t.Fatalf("empty local should return backend unchanged, got %+v", res)
	}

	res, err = Merge(cart, []Line{}, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.MergedCart, cart) || len(res.Conflicts) != 0 {
		t.Fatalf("empty backend should return local unchanged, got %+v", res)
	}

	res, err = Merge(nil, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MergedCart == nil || len(res.MergedCart) != 0 {
		t.Fatalf("expected empty non-nil merged cart, got %#v", res.MergedCart)
	}
	if res.Conflicts == nil || len(res.Conflicts) != 0 {
		t.Fatalf("expected empty non-nil conflicts, got %#v", res.Conflicts)
	}
}

func TestMergeStrategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		strategy   enums.MergeStrategy
		local      int
		backend    int
		maxQty     *int
		wantFinal  int
		wantMerged int
		wantLabel  enums.ConflictResolution
	}{
		{name: "conservative keeps higher", strategy: enums.MergeStrategyConservative, local: 2, backend: 3, wantFinal: 3, wantMerged: 3, wantLabel: enums.ConflictResolutionKeepHigher},
		{name: "aggressive sums", strategy: enums.MergeStrategyAggressive, local: 2, backend: 3, wantFinal: 5, wantMerged: 5, wantLabel: enums.ConflictResolutionSumQuantities},
		{name: "aggressive caps at max", strategy: enums.MergeStrategyAggressive, local: 2, backend: 3, maxQty: intPtr(4), wantFinal: 4, wantMerged: 4, wantLabel: enums.ConflictResolutionSumQuantities},
		{name: "smart similar sums", strategy: enums.MergeStrategySmart, local: 2, backend: 3, wantFinal: 5, wantMerged: 5, wantLabel: enums.ConflictResolutionSumQuantities},
		{name: "smart ratio of exactly two sums", strategy: enums.MergeStrategySmart, local: 1000, backend: 500, wantFinal: 1500, wantMerged: 1500, wantLabel: enums.ConflictResolutionSumQuantities},
		{name: "smart large gap keeps local", strategy: enums.MergeStrategySmart, local: 1000, backend: 100, wantFinal: 1000, wantMerged: 1000, wantLabel: enums.ConflictResolutionKeepLocal},
		{name: "smart large gap keeps backend", strategy: enums.MergeStrategySmart, local: 100, backend: 1000, wantFinal: 1000, wantMerged: 1000, wantLabel: enums.ConflictResolutionKeepBackend},
		{name: "smart equal keeps local", strategy: enums.MergeStrategySmart, local: 4, backend: 4, wantFinal: 4, wantMerged: 4, wantLabel: enums.ConflictResolutionKeepLocal},
		{name: "smart zero side is a large gap", strategy: enums.MergeStrategySmart, local: 0, backend: 5, wantFinal: 5, wantMerged: 5, wantLabel: enums.ConflictResolutionKeepBackend},
		{name: "smart sum caps at max", strategy: enums.MergeStrategySmart, local: 3, backend: 4, maxQty: intPtr(6), wantFinal: 6, wantMerged: 6, wantLabel: enums.ConflictResolutionSumQuantities},
		{name: "conservative not capped at resolution", strategy: enums.MergeStrategyConservative, local: 10, backend: 3, maxQty: intPtr(5), wantFinal: 10, wantMerged: 5, wantLabel: enums.ConflictResolutionKeepHigher},
		{name: "smart gap not capped at resolution", strategy: enums.MergeStrategySmart, local: 1, backend: 9, maxQty: intPtr(5), wantFinal: 9, wantMerged: 5, wantLabel: enums.ConflictResolutionKeepBackend},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			constraints := Constraints{42: {DisplayName: "Widget", MaxQuantity: tt.maxQty}}
			res, err := Merge(
				[]Line{{ProductID: 42, Quantity: tt.local}},
				[]Line{{ProductID: 42, Quantity: tt.backend}},
				constraints,
				opts(tt.strategy),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Conflicts) != 1 {
				t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
			}
			conflict := res.Conflicts[0]
			if conflict.FinalQuantity != tt.wantFinal {
				t.Fatalf("expected final quantity %d, got %d", tt.wantFinal, conflict.FinalQuantity)
			}
			if conflict.Resolution != tt.wantLabel {
				t.Fatalf("expected resolution %s, got %s", tt.wantLabel, conflict.Resolution)
			}
			if conflict.ProductName != "Widget" {
				t.Fatalf("expected product name from constraints, got %q", conflict.ProductName)
			}
			if conflict.LocalQuantity != tt.local || conflict.BackendQuantity != tt.backend {
				t.Fatalf("conflict should carry raw quantities, got %+v", conflict)
			}
			if len(res.MergedCart) != 1 || res.MergedCart[0].Quantity != tt.wantMerged {
				t.Fatalf("expected merged quantity %d, got %+v", tt.wantMerged, res.MergedCart)
			}
		})
	}
}

func TestMergeDropsNonPositiveQuantities(t *testing.T) {
	t.Parallel()

	local := []Line{{ProductID: 1, Quantity: 0}, {ProductID: 2, Quantity: -3}, {ProductID: 3, Quantity: 2}}
	backend := []Line{{ProductID: 4, Quantity: -1}, {ProductID: 5, Quantity: 1}, {ProductID: 2, Quantity: 1}}

	for _, strategy := range []enums.MergeStrategy{enums.MergeStrategyConservative, enums.MergeStrategyAggressive, enums.MergeStrategySmart} {
		res, err := Merge(local, backend, nil, opts(strategy))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", strategy, err)
		}
		for _, line := range res.MergedCart {
			if line.Quantity <= 0 {
				t.Fatalf("%s: non-positive line leaked into merged cart: %+v", strategy, line)
			}
		}
		for _, adj := range res.Adjustments {
			if adj.Reason == enums.CartAdjustmentReasonNonPositive && adj.After != 0 {
				t.Fatalf("%s: dropped lines should report After=0, got %+v", strategy, adj)
			}
		}
	}
}

func TestMergeSummaryArithmetic(t *testing.T) {
	t.Parallel()

	local := []Line{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}
	backend := []Line{{ProductID: 1, Quantity: 3}, {ProductID: 3, Quantity: 1}}

	res, err := Merge(local, backend, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Summary{TotalItems: 4, ConflictsResolved: 1, ItemsAdded: 1, ItemsUpdated: 1, ItemsRemoved: 0}
	if res.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, res.Summary)
	}
	wantCart := []Line{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 1}, {ProductID: 3, Quantity: 1}}
	if !reflect.DeepEqual(res.MergedCart, wantCart) {
		t.Fatalf("unexpected merged cart %+v", res.MergedCart)
	}
}

func TestMergeSummaryUsesRawInputSizes(t *testing.T) {
	t.Parallel()

	local := []Line{{ProductID: 1, Quantity: 0}}
	backend := []Line{{ProductID: 2, Quantity: -1}, {ProductID: 3, Quantity: 2}}

	res, err := Merge(local, backend, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.TotalItems != 3 {
		t.Fatalf("total items should count raw lines, got %d", res.Summary.TotalItems)
	}
	if len(res.MergedCart) != 1 {
		t.Fatalf("expected one surviving line, got %+v", res.MergedCart)
	}
}

func TestMergeClampsAnyLineToMaxQuantity(t *testing.T) {
	t.Parallel()

	constraints := Constraints{
		7: {DisplayName: "Limited", MaxQuantity: intPtr(2)},
		8: {DisplayName: "Also limited", MaxQuantity: intPtr(3)},
	}
	local := []Line{{ProductID: 7, Quantity: 9}}
	backend := []Line{{ProductID: 8, Quantity: 10}}

	for _, strategy := range []enums.MergeStrategy{enums.MergeStrategyConservative, enums.MergeStrategyAggressive, enums.MergeStrategySmart} {
		res, err := Merge(local, backend, constraints, opts(strategy))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", strategy, err)
		}
		want := []Line{{ProductID: 7, Quantity: 2}, {ProductID: 8, Quantity: 3}}
		if !reflect.DeepEqual(res.MergedCart, want) {
			t.Fatalf("%s: expected clamped cart %+v, got %+v", strategy, want, res.MergedCart)
		}
		if len(res.Adjustments) != 2 {
			t.Fatalf("%s: expected two clamp adjustments, got %+v", strategy, res.Adjustments)
		}
		for _, adj := range res.Adjustments {
			if adj.Reason != enums.CartAdjustmentReasonClampedToMax {
				t.Fatalf("%s: unexpected adjustment %+v", strategy, adj)
			}
		}
	}
}

func TestMergeZeroMaxQuantityDropsLine(t *testing.T) {
	t.Parallel()

	constraints := Constraints{7: {MaxQuantity: intPtr(0)}}
	res, err := Merge([]Line{{ProductID: 7, Quantity: 1}}, nil, constraints, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.MergedCart) != 0 {
		t.Fatalf("expected line to be dropped, got %+v", res.MergedCart)
	}
	want := []Adjustment{{ProductID: 7, Reason: enums.CartAdjustmentReasonClampedToMax, Before: 1, After: 0}}
	if !reflect.DeepEqual(res.Adjustments, want) {
		t.Fatalf("expected clamp to zero, got %+v", res.Adjustments)
	}
}

func TestMergeKeepsFirstLinePerProduct(t *testing.T) {
	t.Parallel()

	backend := []Line{{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: 5}}
	res, err := Merge(nil, backend, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.MergedCart, []Line{{ProductID: 1, Quantity: 2}}) {
		t.Fatalf("expected first backend line to survive, got %+v", res.MergedCart)
	}
	if len(res.Adjustments) != 1 || res.Adjustments[0].Reason != enums.CartAdjustmentReasonDuplicate {
		t.Fatalf("expected duplicate adjustment, got %+v", res.Adjustments)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	t.Parallel()

	local := []Line{{ProductID: 1, Quantity: 2}}
	res, err := Merge(local, nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res.MergedCart[0].Quantity = 99
	if local[0].Quantity != 2 {
		t.Fatalf("merged cart must not share memory with the input")
	}
}

func TestMergeInvalidStrategyReturnsMergeError(t *testing.T) {
	t.Parallel()

	_, err := Merge(
		[]Line{{ProductID: 1, Quantity: 1}},
		[]Line{{ProductID: 1, Quantity: 1}},
		nil,
		Options{Strategy: "RANDOM"},
	)
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	mergeErr := AsMergeError(err)
	if mergeErr == nil {
		t.Fatalf("expected *MergeError, got %T", err)
	}
	if mergeErr.Step != StepResolve {
		t.Fatalf("expected resolve step, got %q", mergeErr.Step)
	}
}

func TestMergeErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := error(newMergeError(StepValidate, cause))
	if !errors.Is(err, cause) {
		t.Fatal("MergeError should unwrap to its cause")
	}
	if got := err.Error(); got != "cart merge failed during validate: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestExceedsRatio(t *testing.T) {
	t.Parallel()

	cases := []struct {
		hi, lo int
		want   bool
	}{
		{hi: 3, lo: 2, want: false},
		{hi: 4, lo: 2, want: false},
		{hi: 5, lo: 2, want: true},
		{hi: 1, lo: 0, want: true},
		{hi: 3, lo: -1, want: false},
		{hi: -1, lo: -4, want: false},
		{hi: math.MaxInt, lo: math.MaxInt / 2, want: true},
		{hi: math.MaxInt - 1, lo: math.MaxInt / 2, want: false},
		{hi: 1<<62 + 2, lo: 1<<62 + 1, want: false},
	}
	for _, c := range cases {
		if got := exceedsRatio(c.hi, c.lo, largeGapRatio); got != c.want {
			t.Fatalf("exceedsRatio(%d, %d) = %v, want %v", c.hi, c.lo, got, c.want)
		}
	}
}

func TestMergeSumSaturatesInsteadOfWrapping(t *testing.T) {
	t.Parallel()

	for _, strategy := range []enums.MergeStrategy{enums.MergeStrategyAggressive, enums.MergeStrategySmart} {
		res, err := Merge(
			[]Line{{ProductID: 1, Quantity: math.MaxInt}},
			[]Line{{ProductID: 1, Quantity: math.MaxInt}},
			nil,
			opts(strategy),
		)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", strategy, err)
		}
		if got := res.Conflicts[0].FinalQuantity; got != math.MaxInt {
			t.Fatalf("%s: expected saturated final quantity, got %d", strategy, got)
		}
		if len(res.MergedCart) != 1 || res.MergedCart[0].Quantity != math.MaxInt {
			t.Fatalf("%s: product must survive the merge, got %+v", strategy, res.MergedCart)
		}
	}

	res, err := Merge(
		[]Line{{ProductID: 1, Quantity: math.MaxInt}},
		[]Line{{ProductID: 1, Quantity: 1}},
		Constraints{1: {MaxQuantity: intPtr(10)}},
		opts(enums.MergeStrategyAggressive),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Conflicts[0].FinalQuantity != 10 || res.MergedCart[0].Quantity != 10 {
		t.Fatalf("expected cap to apply after saturation, got %+v", res)
	}
}

func TestMergeSmartHugeSimilarQuantitiesSum(t *testing.T) {
	t.Parallel()

	res, err := Merge(
		[]Line{{ProductID: 1, Quantity: 1<<62 + 2}},
		[]Line{{ProductID: 1, Quantity: 1<<62 + 1}},
		nil,
		opts(enums.MergeStrategySmart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conflict := res.Conflicts[0]
	if conflict.Resolution != enums.ConflictResolutionSumQuantities {
		t.Fatalf("similar quantities should sum, got %s", conflict.Resolution)
	}
	if conflict.FinalQuantity != math.MaxInt {
		t.Fatalf("expected saturated sum, got %d", conflict.FinalQuantity)
	}
}

func TestMergeRecoversPanicAsMergeError(t *testing.T) {
	original := resolve
	resolve = func(enums.MergeStrategy, int, int, int, bool) (resolution, error) {
		var constraints []Constraints
		_ = constraints[3]
		return resolution{}, nil
	}
	t.Cleanup(func() { resolve = original })

	res, err := Merge(
		[]Line{{ProductID: 1, Quantity: 1}},
		[]Line{{ProductID: 1, Quantity: 2}},
		nil,
		DefaultOptions(),
	)
	if res != nil {
		t.Fatalf("expected no result on panic, got %+v", res)
	}
	mergeErr := AsMergeError(err)
	if mergeErr == nil {
		t.Fatalf("expected *MergeError, got %T: %v", err, err)
	}
	if mergeErr.Step != StepResolve {
		t.Fatalf("expected resolve step, got %q", mergeErr.Step)
	}
	cause := errors.Unwrap(err)
	if cause == nil || !strings.HasPrefix(cause.Error(), "panic: ") {
		t.Fatalf("expected recovered panic as cause, got %v", cause)
	}
}
