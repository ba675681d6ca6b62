// Copyright (c) 2025 BVK Chaitanya

package rebal

import (
	"testing"

	"github.com/bvk/corevault/px"
	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

func usd(v int64) units.Quantity {
	return units.New(decimal.New(v, 18), units.Usd1e18)
}

func TestTarget(t *testing.T) {
	// equity 1000, reserve 100 bps: deployable 990, 495 per asset.
	target, err := Target(usd(1000), 100, 2)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := target.RawIn(units.Usd1e18)
	if want := decimal.New(495, 18); !raw.Equal(want) {
		t.Fatalf("want %s, got %s", want, raw)
	}
}

func TestTargetFloors(t *testing.T) {
	// Odd deployable amounts floor per asset.
	equity := units.New(decimal.NewFromInt(101), units.Usd1e18)
	target, err := Target(equity, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := target.RawIn(units.Usd1e18)
	if want := decimal.NewFromInt(50); !raw.Equal(want) {
		t.Fatalf("want %s, got %s", want, raw)
	}
}

func TestDeltas(t *testing.T) {
	// equity 1000, no reserve, no deadband: targets are 500 each.
	positions := []units.Quantity{usd(300), usd(800)}
	deltas, err := Deltas(usd(1000), 0, 0, positions)
	if err != nil {
		t.Fatal(err)
	}
	if len(deltas) != 2 {
		t.Fatalf("want 2 deltas, got %d", len(deltas))
	}
	d0, _ := deltas[0].RawIn(units.Usd1e18)
	d1, _ := deltas[1].RawIn(units.Usd1e18)
	if want := decimal.New(200, 18); !d0.Equal(want) {
		t.Fatalf("want %s, got %s", want, d0)
	}
	if want := decimal.New(-300, 18); !d1.Equal(want) {
		t.Fatalf("want %s, got %s", want, d1)
	}
}

func TestDeltasDeadband(t *testing.T) {
	// equity 31, positions 15.49 and 15.51: both deltas are 0.01 in
	// magnitude, at the 50 bps deadband of 0.155, so both must zero.
	equity := units.New(decimal.New(31, 18), units.Usd1e18)
	positions := []units.Quantity{
		units.New(decimal.New(1549, 16), units.Usd1e18),
		units.New(decimal.New(1551, 16), units.Usd1e18),
	}
	deltas, err := Deltas(equity, 0, 50, positions)
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range deltas {
		if !d.IsZero() {
			t.Fatalf("delta %d: want zero inside deadband, got %s", i, d.Raw())
		}
	}

	// With the deadband off the same positions produce order flow.
	deltas, err = Deltas(equity, 0, 0, positions)
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range deltas {
		if d.IsZero() {
			t.Fatalf("delta %d: want non-zero without deadband", i)
		}
	}
}

func TestLimitPxBuy(t *testing.T) {
	// ask 50000.00 at pxDecimals=2, szDecimals=5, 10 bps allowance:
	// 50050 rounded up to 3 price decimals.
	limit, err := LimitPx(decimal.NewFromInt(4999900), decimal.NewFromInt(5000000), 2, 5, px.Buy, 10)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := limit.RawIn(units.Px1e8)
	if want := decimal.New(50050, 8); !raw.Equal(want) {
		t.Fatalf("want %s, got %s", want, raw)
	}
}

func TestLimitPxSell(t *testing.T) {
	// bid 49999.00 with 10 bps allowance: 49949.001, already at the
	// allowed resolution.
	limit, err := LimitPx(decimal.NewFromInt(4999900), decimal.NewFromInt(5000000), 2, 5, px.Sell, 10)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := limit.RawIn(units.Px1e8)
	if want := decimal.NewFromInt(4994900100000); !raw.Equal(want) {
		t.Fatalf("want %s, got %s", want, raw)
	}
	// The sell limit must sit at or below the bid.
	if raw.GreaterThan(decimal.New(49999, 8)) {
		t.Fatalf("sell limit %s cannot exceed the bid", raw)
	}
}

func TestLimitPxBadBook(t *testing.T) {
	if _, err := LimitPx(decimal.Zero, decimal.NewFromInt(100), 2, 5, px.Sell, 10); err == nil {
		t.Fatalf("zero bid must be rejected for sells")
	}
	if _, err := LimitPx(decimal.NewFromInt(100), decimal.Zero, 2, 5, px.Buy, 10); err == nil {
		t.Fatalf("zero ask must be rejected for buys")
	}
}

func TestClampSellSize(t *testing.T) {
	size := units.New(decimal.NewFromInt(1000), units.Sz)
	avail := units.New(decimal.NewFromInt(600), units.Sz)

	clamped, err := ClampSellSize(size, avail)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := clamped.RawIn(units.Sz)
	if want := decimal.NewFromInt(600); !raw.Equal(want) {
		t.Fatalf("want %s, got %s", want, raw)
	}

	// A size within the balance is unchanged.
	small := units.New(decimal.NewFromInt(100), units.Sz)
	clamped, err = ClampSellSize(small, avail)
	if err != nil {
		t.Fatal(err)
	}
	if !clamped.Raw().Equal(small.Raw()) {
		t.Fatalf("want %s, got %s", small.Raw(), clamped.Raw())
	}
}
