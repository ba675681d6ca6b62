// Copyright (c) 2025 BVK Chaitanya

package gobs

import "github.com/shopspring/decimal"

// AssetConfig binds one risk asset to its venue identifiers.
type AssetConfig struct {
	Name string

	// TokenID addresses the asset's spot-balance namespace.
	TokenID uint32

	// MarketID addresses the asset's market; the order-book namespace is
	// MarketID offset by a fixed constant.
	MarketID uint32

	// PxDecimals is the market's declared raw price resolution.
	PxDecimals int32
}

type HandlerConfig struct {
	Version uint64

	// CoreAccount is the venue account the handler trades from.
	CoreAccount string

	// USDCTokenID is the settlement asset's spot-balance token id.
	USDCTokenID uint32

	// Assets are the risk assets capital is allocated across.
	Assets []AssetConfig

	// ReserveBps is the fraction of equity kept in the settlement asset
	// instead of risk exposure.
	ReserveBps uint32

	// DeadbandBps zeroes any allocation delta at or below this fraction of
	// equity, preventing order churn from diff noise near convergence.
	DeadbandBps uint32

	// SlippageBps is the limit-price allowance added to the ask for buys
	// and subtracted from the bid for sells.
	SlippageBps uint32

	MaxDeviationBps uint32

	MaxNotionalPerEpoch1e18 decimal.Decimal
	EpochBlocks             uint64

	// MinOrderNotional1e18 below which a computed order is skipped.
	MinOrderNotional1e18 decimal.Decimal
}

// HandlerState is the handler's persistent mutable state: the per-asset
// oracle reference prices, the epoch window counters and the client order
// id offset.
type HandlerState struct {
	LastPxMap map[string]decimal.Decimal // asset name -> 1e8 reference px

	EpochWindowStart      uint64
	EpochNotionalSent1e18 decimal.Decimal

	ClientIDOffset uint64
}
