// Copyright (c) 2025 BVK Chaitanya

// Package guard implements the oracle deviation guard.
//
// The guard keeps one reference price per asset and compares every new
// oracle read against a band around it. An in-band read becomes the new
// reference and downstream order placement is allowed. An out-of-band read
// never aborts the caller: accounting proceeds, order placement is skipped,
// and the reference price moves only to the nearest band edge. An attacker
// therefore cannot walk the reference arbitrarily far with a single
// manipulated read, while a genuinely fast-moving market still pulls the
// reference along over repeated calls.
package guard

import (
	"fmt"

	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

type Outcome int

const (
	Trusted Outcome = iota
	Deviated
)

func (o Outcome) String() string {
	if o == Trusted {
		return "trusted"
	}
	return "deviated"
}

// Result is the tagged outcome of one evaluation. Px is the accepted
// reference price: the new price when Trusted, the clamped band edge when
// Deviated. Callers must price positions off Result.Px, never off the raw
// input.
type Result struct {
	Outcome Outcome
	Px      units.Quantity
}

func (r Result) IsTrusted() bool {
	return r.Outcome == Trusted
}

type Guard struct {
	maxDeviationBps uint32

	lastPx decimal.Decimal
}

// New returns a guard with the given band width in basis points. A zero
// width disables the guard: every observation is trusted, since a literal
// zero-width band would reject every price move and freeze trading.
func New(maxDeviationBps uint32) *Guard {
	return &Guard{maxDeviationBps: maxDeviationBps}
}

// Restore recreates a guard with a previously persisted reference price.
func Restore(maxDeviationBps uint32, lastPx1e8 decimal.Decimal) *Guard {
	return &Guard{maxDeviationBps: maxDeviationBps, lastPx: lastPx1e8}
}

// Last returns the current 1e8 reference price. Zero means the guard has
// not seen a price yet.
func (g *Guard) Last() decimal.Decimal {
	return g.lastPx
}

func (g *Guard) SetMaxDeviationBps(bps uint32) {
	g.maxDeviationBps = bps
}

// Evaluate compares a new 1e8 price against the deviation band around the
// last reference price and commits the outcome: the reference moves to the
// new price when trusted, to the nearest band edge when deviated. Band
// edges are computed with floor division, like the ledger does, and are
// inclusive: a price exactly at an edge is trusted. The very first
// observation seeds the reference and is always trusted.
func (g *Guard) Evaluate(price units.Quantity) (Result, error) {
	r, err := g.Peek(price)
	if err != nil {
		return Result{}, err
	}
	g.lastPx = r.Px.Raw()
	return r, nil
}

// Peek evaluates a price without moving the reference. Views that need a
// band-safe valuation (e.g. NAV reads) use Peek so they cannot advance the
// reference price outside the entry points that own it.
func (g *Guard) Peek(price units.Quantity) (Result, error) {
	newPx, err := price.RawIn(units.Px1e8)
	if err != nil {
		return Result{}, err
	}
	if newPx.Sign() <= 0 {
		return Result{}, fmt.Errorf("oracle price %s must be positive", newPx)
	}
	if g.lastPx.IsZero() || g.maxDeviationBps == 0 {
		return Result{Outcome: Trusted, Px: units.New(newPx, units.Px1e8)}, nil
	}

	bps := decimal.NewFromInt(int64(g.maxDeviationBps))
	low := g.lastPx.Mul(decimal.NewFromInt(10000).Sub(bps)).Shift(-4).Floor()
	high := g.lastPx.Mul(decimal.NewFromInt(10000).Add(bps)).Shift(-4).Floor()

	if newPx.Cmp(low) >= 0 && newPx.Cmp(high) <= 0 {
		return Result{Outcome: Trusted, Px: units.New(newPx, units.Px1e8)}, nil
	}

	edge := low
	if newPx.Cmp(high) > 0 {
		edge = high
	}
	return Result{Outcome: Deviated, Px: units.New(edge, units.Px1e8)}, nil
}
