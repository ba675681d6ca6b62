// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// VaultState is the share/cash ledger of the vault. All USD values are
// 1e18-scaled integers and shares are 1e18-scaled.
type VaultState struct {
	TotalShares decimal.Decimal

	// Cash1e18 is idle settlement-asset capital retained on the ledger
	// side, not yet deployed to the venue.
	Cash1e18 decimal.Decimal

	// Pending1e18 is the sum of unsettled withdrawal payout obligations.
	// NAV excludes it: the claim already belongs to the withdrawing users.
	Pending1e18 decimal.Decimal

	ShareMap map[string]decimal.Decimal

	NextWithdrawID uint64
}

// WithdrawRequest is one entry of the two-phase withdrawal queue. Shares
// are burned when the request is created; the payout happens later, after
// capital has been recalled from the venue. FeeBpsSnapshot freezes the fee
// schedule in effect at request time so later schedule changes cannot
// retroactively alter the pending redemption.
type WithdrawRequest struct {
	ID   uint64
	User string

	Shares decimal.Decimal

	GrossUsd1e18 decimal.Decimal

	FeeBpsSnapshot uint32

	Settled bool

	CreateTime time.Time
	SettleTime time.Time
}

type WithdrawFeeTier struct {
	// MinAmount1e18 is the smallest gross withdrawal the tier applies to.
	MinAmount1e18 decimal.Decimal
	FeeBps        uint32
}

type VaultConfig struct {
	Version uint64

	DepositFeeBps uint32

	// WithdrawFeeBps is the default withdrawal fee. WithdrawFeeTiers, when
	// present, override it by gross amount; the highest matching tier wins.
	WithdrawFeeBps   uint32
	WithdrawFeeTiers []WithdrawFeeTier

	// AutoDeployBps is the fraction of each net deposit forwarded to the
	// handler for allocation. The remainder stays as idle cash.
	AutoDeployBps uint32

	MinDepositUsd1e18 decimal.Decimal

	Paused bool
}
