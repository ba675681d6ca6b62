// Copyright (c) 2025 BVK Chaitanya

// Package rebal computes the allocation deltas that move the portfolio
// toward its target weights and derives safe limit prices for the orders
// that realize them. It is pure computation; dispatch, guarding and rate
// limiting live with the handler.
package rebal

import (
	"fmt"

	"github.com/bvk/corevault/px"
	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

var bps10000 = decimal.NewFromInt(10000)

// Target returns the per-asset USD exposure target:
// equity * (10000 - reserveBps) / 10000 / assetCount, floor.
func Target(equity units.Quantity, reserveBps uint32, assetCount int) (units.Quantity, error) {
	value, err := equity.RawIn(units.Usd1e18)
	if err != nil {
		return units.Quantity{}, err
	}
	if assetCount <= 0 {
		return units.Quantity{}, fmt.Errorf("asset count must be positive")
	}
	if reserveBps > 10000 {
		return units.Quantity{}, fmt.Errorf("reserve %d bps is out of range", reserveBps)
	}
	deployed := value.Mul(bps10000.Sub(decimal.NewFromInt(int64(reserveBps)))).Shift(-4).Floor()
	target, _ := deployed.QuoRem(decimal.NewFromInt(int64(assetCount)), 0)
	return units.New(target, units.Usd1e18), nil
}

// Deltas returns the signed per-asset USD deltas from current positions to
// the target exposure. Any delta whose magnitude is at or below
// equity*deadbandBps/10000 is zeroed so converged positions produce no
// order flow.
func Deltas(equity units.Quantity, reserveBps, deadbandBps uint32, positions []units.Quantity) ([]units.Quantity, error) {
	target, err := Target(equity, reserveBps, len(positions))
	if err != nil {
		return nil, err
	}
	equityRaw, err := equity.RawIn(units.Usd1e18)
	if err != nil {
		return nil, err
	}
	deadband := equityRaw.Mul(decimal.NewFromInt(int64(deadbandBps))).Shift(-4).Floor()

	deltas := make([]units.Quantity, 0, len(positions))
	for _, pos := range positions {
		delta, err := target.Sub(pos)
		if err != nil {
			return nil, err
		}
		if delta.Raw().Abs().LessThanOrEqual(deadband) {
			delta = units.Zero(units.Usd1e18)
		}
		deltas = append(deltas, delta)
	}
	return deltas, nil
}

// LimitPx derives a quantized 1e8 limit price from the top of book with a
// slippage allowance: ask*(1+eps) for buys, bid*(1-eps) for sells. The
// allowance guarantees the IOC order crosses the touch it was priced
// against even if the book ticks slightly before execution.
func LimitPx(bidRaw, askRaw decimal.Decimal, pxDecimals, szDecimals int32, side px.Side, slippageBps uint32) (units.Quantity, error) {
	if err := side.Check(); err != nil {
		return units.Quantity{}, err
	}
	eps := decimal.NewFromInt(int64(slippageBps))

	var adj decimal.Decimal
	if side == px.Buy {
		if askRaw.Sign() <= 0 {
			return units.Quantity{}, fmt.Errorf("best offer %s must be positive", askRaw)
		}
		ask, err := px.ToPx1e8(askRaw, pxDecimals).RawIn(units.Px1e8)
		if err != nil {
			return units.Quantity{}, err
		}
		adj = ask.Mul(bps10000.Add(eps)).Shift(-4).Floor()
	} else {
		if bidRaw.Sign() <= 0 {
			return units.Quantity{}, fmt.Errorf("best bid %s must be positive", bidRaw)
		}
		bid, err := px.ToPx1e8(bidRaw, pxDecimals).RawIn(units.Px1e8)
		if err != nil {
			return units.Quantity{}, err
		}
		adj = bid.Mul(bps10000.Sub(eps)).Shift(-4).Floor()
	}
	return px.Quantize(units.New(adj, units.Px1e8), szDecimals, side)
}

// ClampSellSize bounds a sell size to the spendable balance observed at
// evaluation time. Partial fills and stale balances elsewhere in the
// system can make the delta formula imply more than is actually held; the
// engine must never synthesize such a sell, independent of whether the
// venue would reject it.
func ClampSellSize(size, available units.Quantity) (units.Quantity, error) {
	c, err := size.Cmp(available)
	if err != nil {
		return units.Quantity{}, err
	}
	if c > 0 {
		return available, nil
	}
	return size, nil
}
