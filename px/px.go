// Copyright (c) 2025 BVK Chaitanya

// Package px normalizes venue prices between their raw market base and the
// canonical 1e8 base, quantizes limit prices to the venue's allowed
// resolution and converts USD deltas into venue-native order sizes.
package px

import (
	"fmt"

	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Check() error {
	if s != Buy && s != Sell {
		return fmt.Errorf("invalid side %q", string(s))
	}
	return nil
}

// ToPx1e8 rescales a raw venue price declared with pxDecimals into the
// canonical 1e8 base. When pxDecimals > 8 the extra resolution is floored
// away.
func ToPx1e8(raw decimal.Decimal, pxDecimals int32) units.Quantity {
	if pxDecimals <= 8 {
		return units.New(raw.Shift(8-pxDecimals), units.Px1e8)
	}
	return units.New(raw.Shift(8-pxDecimals).Floor(), units.Px1e8)
}

// ToRawPx is the inverse of ToPx1e8.
//
// The round trip is asymmetric and that asymmetry is part of the contract:
// for pxDecimals >= 8 both directions are exact. For pxDecimals < 8 a
// raw -> 1e8 -> raw trip is lossless, but a 1e8 -> raw -> 1e8 trip floors
// away the low-order decimals that don't exist at the venue's native
// resolution.
func ToRawPx(price units.Quantity, pxDecimals int32) (decimal.Decimal, error) {
	px, err := price.RawIn(units.Px1e8)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if pxDecimals >= 8 {
		return px.Shift(pxDecimals - 8), nil
	}
	return px.Shift(pxDecimals - 8).Floor(), nil
}

// Quantize truncates a 1e8 price to the venue's allowed price resolution
// for an asset, maxPxDecimals = 8 - szDecimals. The truncated remainder is
// rounded up for BUY orders so the taker never under-pays and risks a
// reject, and rounded down for SELL orders so the taker never over-demands.
// For any input, Quantize(px, sz, Buy) >= Quantize(px, sz, Sell).
func Quantize(price units.Quantity, szDecimals int32, side Side) (units.Quantity, error) {
	raw, err := price.RawIn(units.Px1e8)
	if err != nil {
		return units.Quantity{}, err
	}
	if err := side.Check(); err != nil {
		return units.Quantity{}, err
	}
	maxPxDecimals := 8 - szDecimals
	real := raw.Shift(-8)
	if side == Buy {
		real = real.RoundCeil(maxPxDecimals)
	} else {
		real = real.RoundFloor(maxPxDecimals)
	}
	return units.New(real.Shift(8), units.Px1e8), nil
}

// SizeFromUSD converts a 1e18 USD amount into a sz-base order size at the
// given 1e8 price, with floor division:
//
//	size = usd * 10^szDecimals / (px * 1e10)
//
// A zero usd amount or a zero price yields a zero size. Callers must treat
// a zero size as "skip this order", never as an error: a zero-size order
// must never be dispatched.
func SizeFromUSD(usd units.Quantity, price units.Quantity, szDecimals int32) (units.Quantity, error) {
	u, err := usd.RawIn(units.Usd1e18)
	if err != nil {
		return units.Quantity{}, err
	}
	p, err := price.RawIn(units.Px1e8)
	if err != nil {
		return units.Quantity{}, err
	}
	if u.IsZero() || p.IsZero() {
		return units.Zero(units.Sz), nil
	}
	q, _ := u.Shift(szDecimals).QuoRem(p.Shift(10), 0)
	return units.New(q, units.Sz), nil
}
