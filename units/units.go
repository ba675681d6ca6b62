// Copyright (c) 2025 BVK Chaitanya

// Package units defines tagged fixed-point quantities.
//
// Every asset on the venue has two independent integer bases: a "sz" base
// used for order sizes (10^szDecimals units per token) and a "wei" base used
// for balances and transfers (10^weiDecimals units per token). Prices are
// normalized to a canonical 1e8 base and USD values to a canonical 1e18
// base. A bare integer carries no record of which base it is in, which is
// the recurring defect in this domain, so raw amounts are wrapped in a
// Quantity that refuses arithmetic across bases. Crossing a base always
// goes through one of the explicit conversion functions below.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Base int

const (
	Sz      Base = iota // venue-native size units, 10^szDecimals per token
	Wei                 // ledger-native units, 10^weiDecimals per token
	Px1e8               // canonical price, 1e8 fixed-point
	Usd1e18             // canonical USD value, 1e18 fixed-point
)

func (b Base) String() string {
	switch b {
	case Sz:
		return "sz"
	case Wei:
		return "wei"
	case Px1e8:
		return "px1e8"
	case Usd1e18:
		return "usd1e18"
	}
	return fmt.Sprintf("base(%d)", int(b))
}

// TokenDecimalProfile holds the two fixed-point bases of one asset as
// declared by the venue's tokenInfo view.
type TokenDecimalProfile struct {
	SzDecimals          int32
	WeiDecimals         int32
	EvmExtraWeiDecimals int32
}

func (p *TokenDecimalProfile) Check() error {
	if p.SzDecimals < 0 || p.SzDecimals > 18 {
		return fmt.Errorf("szDecimals %d is out of range", p.SzDecimals)
	}
	if p.WeiDecimals < 0 || p.WeiDecimals > 18 {
		return fmt.Errorf("weiDecimals %d is out of range", p.WeiDecimals)
	}
	if p.WeiDecimals < p.SzDecimals {
		return fmt.Errorf("weiDecimals %d cannot be smaller than szDecimals %d", p.WeiDecimals, p.SzDecimals)
	}
	return nil
}

// Quantity is an integer amount tagged with its fixed-point base.
type Quantity struct {
	raw  decimal.Decimal
	base Base
}

func New(raw decimal.Decimal, base Base) Quantity {
	return Quantity{raw: raw, base: base}
}

func Zero(base Base) Quantity {
	return Quantity{base: base}
}

func (q Quantity) Base() Base {
	return q.base
}

func (q Quantity) IsZero() bool {
	return q.raw.IsZero()
}

func (q Quantity) IsNegative() bool {
	return q.raw.IsNegative()
}

func (q Quantity) String() string {
	return q.raw.String() + "@" + q.base.String()
}

// Raw returns the untagged integer value. Callers are expected to use RawIn
// instead whenever the base is not locally obvious.
func (q Quantity) Raw() decimal.Decimal {
	return q.raw
}

// RawIn returns the untagged integer value after asserting the base.
func (q Quantity) RawIn(base Base) (decimal.Decimal, error) {
	if q.base != base {
		return decimal.Decimal{}, fmt.Errorf("quantity is in base %v, not %v", q.base, base)
	}
	return q.raw, nil
}

func (q Quantity) Add(v Quantity) (Quantity, error) {
	if q.base != v.base {
		return Quantity{}, fmt.Errorf("cannot add %v base to %v base", v.base, q.base)
	}
	return Quantity{raw: q.raw.Add(v.raw), base: q.base}, nil
}

func (q Quantity) Sub(v Quantity) (Quantity, error) {
	if q.base != v.base {
		return Quantity{}, fmt.Errorf("cannot subtract %v base from %v base", v.base, q.base)
	}
	return Quantity{raw: q.raw.Sub(v.raw), base: q.base}, nil
}

func (q Quantity) Cmp(v Quantity) (int, error) {
	if q.base != v.base {
		return 0, fmt.Errorf("cannot compare %v base with %v base", q.base, v.base)
	}
	return q.raw.Cmp(v.raw), nil
}

// SzToWei rescales a sz-base amount into the wei base. The venue guarantees
// weiDecimals >= szDecimals so the conversion is exact.
func SzToWei(q Quantity, p *TokenDecimalProfile) (Quantity, error) {
	raw, err := q.RawIn(Sz)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{raw: raw.Shift(p.WeiDecimals - p.SzDecimals), base: Wei}, nil
}

// WeiToSz rescales a wei-base amount into the sz base, flooring away any
// dust below the venue's size resolution.
func WeiToSz(q Quantity, p *TokenDecimalProfile) (Quantity, error) {
	raw, err := q.RawIn(Wei)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{raw: raw.Shift(p.SzDecimals - p.WeiDecimals).Floor(), base: Sz}, nil
}

// USDValue values a sz-base amount at a 1e8 price, producing a 1e18 USD
// value: usd = sz * px * 10^(10 - szDecimals).
func USDValue(amount Quantity, price Quantity, p *TokenDecimalProfile) (Quantity, error) {
	sz, err := amount.RawIn(Sz)
	if err != nil {
		return Quantity{}, err
	}
	px, err := price.RawIn(Px1e8)
	if err != nil {
		return Quantity{}, err
	}
	usd := sz.Mul(px).Shift(10 - p.SzDecimals).Floor()
	return Quantity{raw: usd, base: Usd1e18}, nil
}
