// Copyright (c) 2025 BVK Chaitanya

// Package api defines the http POST request and response types for the
// corevault server. All amounts are 1e18-scaled decimal integers.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

const DepositPath = "/vault/deposit"

type DepositRequest struct {
	User string

	Amount1e18 decimal.Decimal
}

type DepositResponse struct {
	Shares decimal.Decimal

	PPS1e18 decimal.Decimal
}

const WithdrawPath = "/vault/withdraw"

type WithdrawRequest struct {
	User string

	Shares decimal.Decimal
}

type WithdrawResponse struct {
	ID uint64

	Gross1e18 decimal.Decimal

	// FeeBps is the fee schedule frozen into the queued request.
	FeeBps uint32
}

const SettlePath = "/vault/settle"

type SettleRequest struct {
	ID uint64
}

type SettleResponse struct {
	Net1e18 decimal.Decimal
}

const VaultStatusPath = "/vault/status"

type VaultStatusRequest struct {
}

type WithdrawItem struct {
	ID   uint64
	User string

	Shares    decimal.Decimal
	Gross1e18 decimal.Decimal
	FeeBps    uint32

	CreateTime time.Time
}

type VaultStatusResponse struct {
	NAV1e18 decimal.Decimal
	PPS1e18 decimal.Decimal

	TotalShares decimal.Decimal
	Cash1e18    decimal.Decimal
	Pending1e18 decimal.Decimal

	Paused bool

	PendingWithdraws []*WithdrawItem
}

const FeeQuotePath = "/vault/fee-quote"

// FeeQuoteRequest asks what withdrawal fee an amount would pay under the
// current schedule. The answer is only a quote; the binding snapshot is
// taken when the withdrawal is queued.
type FeeQuoteRequest struct {
	Amount1e18 decimal.Decimal
}

type FeeQuoteResponse struct {
	FeeBps uint32
}

const SharesPath = "/vault/shares"

type SharesRequest struct {
	User string
}

type SharesResponse struct {
	Shares decimal.Decimal
}
