// Copyright (c) 2025 BVK Chaitanya

// Package epoch caps outbound order notional over fixed-length block-height
// windows, bounding the maximum value-at-risk of dispatched flow per unit
// time independently of the oracle guard.
package epoch

import (
	"errors"
	"fmt"

	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

// ErrRateLimited is reported when an order would push the window total over
// the cap. The order is rejected whole, never partially sized down; callers
// retry in a later window or reduce trigger frequency.
var ErrRateLimited = errors.New("epoch notional limit exceeded")

type Limiter struct {
	maxNotional  decimal.Decimal // 1e18 USD per window; zero disables the cap
	windowBlocks uint64

	windowStart uint64
	sent        decimal.Decimal
}

func New(maxNotional1e18 decimal.Decimal, windowBlocks uint64) *Limiter {
	return &Limiter{maxNotional: maxNotional1e18, windowBlocks: windowBlocks}
}

// Restore recreates a limiter with previously persisted window counters.
func Restore(maxNotional1e18 decimal.Decimal, windowBlocks uint64, windowStart uint64, sent1e18 decimal.Decimal) *Limiter {
	return &Limiter{
		maxNotional:  maxNotional1e18,
		windowBlocks: windowBlocks,
		windowStart:  windowStart,
		sent:         sent1e18,
	}
}

// Window returns the current window start height and the notional already
// dispatched within it.
func (l *Limiter) Window() (start uint64, sent decimal.Decimal) {
	return l.windowStart, l.sent
}

func (l *Limiter) SetLimits(maxNotional1e18 decimal.Decimal, windowBlocks uint64) {
	l.maxNotional = maxNotional1e18
	l.windowBlocks = windowBlocks
}

// Allow accounts one order's 1e18 USD notional against the window
// containing the given block height. The window is reset before the order
// is evaluated when the height has moved past windowStart+windowBlocks.
func (l *Limiter) Allow(height uint64, notional units.Quantity) error {
	value, err := notional.RawIn(units.Usd1e18)
	if err != nil {
		return err
	}
	if value.IsNegative() {
		return fmt.Errorf("order notional %s cannot be negative", value)
	}
	if l.windowBlocks == 0 || l.maxNotional.IsZero() {
		return nil
	}
	if height >= l.windowStart+l.windowBlocks {
		l.windowStart = height
		l.sent = decimal.Decimal{}
	}
	total := l.sent.Add(value)
	if total.GreaterThan(l.maxNotional) {
		return fmt.Errorf("notional %s + sent %s exceeds window cap %s: %w",
			value, l.sent, l.maxNotional, ErrRateLimited)
	}
	l.sent = total
	return nil
}
