// Copyright (c) 2025 BVK Chaitanya

// Package hlcore defines the narrow interfaces this engine consumes from
// the external execution venue: a read-only oracle view and a one-way
// action-dispatch sink. The venue settles asynchronously relative to the
// controlling ledger; an order's fill is never visible in the same call
// that dispatched it, only through balance reads on a later call.
package hlcore

import (
	"context"

	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

// SpotBalance is one account's balance for one token, in the token's wei
// base. Hold is the amount locked under resting orders; only Total-Hold is
// spendable.
type SpotBalance struct {
	Total    decimal.Decimal
	Hold     decimal.Decimal
	EntryNtl decimal.Decimal
}

// Available returns the spendable wei-base amount.
func (b *SpotBalance) Available() units.Quantity {
	return units.New(b.Total.Sub(b.Hold), units.Wei)
}

type TokenInfo struct {
	Name string

	Decimals units.TokenDecimalProfile
}

// BBO is the top of book for one order-book asset, in the market's raw
// price base.
type BBO struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Reader exposes the venue's oracle views. All reads made through one
// Reader within a single engine call observe one consistent venue state;
// no consistency holds across calls.
type Reader interface {
	BlockHeight(ctx context.Context) (uint64, error)

	AccountExists(ctx context.Context, owner string) (bool, error)

	SpotBalance(ctx context.Context, owner string, token uint32) (*SpotBalance, error)

	TokenInfo(ctx context.Context, token uint32) (*TokenInfo, error)

	// SpotPx returns the oracle spot price of the market in its raw price
	// base.
	SpotPx(ctx context.Context, market uint32) (decimal.Decimal, error)

	// BBO returns the top of book for an order-book asset id (market id +
	// coreact.SpotMarketOffset).
	BBO(ctx context.Context, asset uint32) (*BBO, error)
}

// Writer is the one-way action sink. SendAction enqueues an encoded action
// for off-ledger execution and returns immediately; there is no fill
// confirmation and no cancellation surface.
type Writer interface {
	SendAction(ctx context.Context, action []byte) error
}

// Bridge moves settlement-asset capital between the controlling ledger and
// the venue account. The bridge implementation itself is external; the
// engine only drives it.
type Bridge interface {
	// TransferToCore moves a 1e18 USD amount of the settlement asset from
	// the ledger to the venue account.
	TransferToCore(ctx context.Context, usd units.Quantity) error

	// RecallFromCore moves a 1e18 USD amount back from the venue account to
	// the ledger. It returns the amount actually recalled, which may be
	// smaller when the venue balance is short.
	RecallFromCore(ctx context.Context, usd units.Quantity) (units.Quantity, error)
}
