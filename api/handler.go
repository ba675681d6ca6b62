// Copyright (c) 2025 BVK Chaitanya

package api

import "github.com/shopspring/decimal"

const RebalancePath = "/handler/rebalance"

type RebalanceRequest struct {
	// MinOuts, when non-empty, is the minimum acceptable order size per
	// configured asset, in sz units. A dispatched order sized below its
	// minimum fails the whole call before anything is sent.
	MinOuts []decimal.Decimal
}

type RebalanceResponse struct {
	Height uint64

	Equity1e18 decimal.Decimal

	Deltas1e18 map[string]decimal.Decimal

	OrdersPlaced int
}

const HandlerStatusPath = "/handler/status"

type HandlerStatusRequest struct {
}

type PositionItem struct {
	Asset string

	BalanceSz   decimal.Decimal
	AvailableSz decimal.Decimal

	Px1e8        decimal.Decimal
	UsdValue1e18 decimal.Decimal
}

type HandlerStatusResponse struct {
	Height uint64

	Equity1e18 decimal.Decimal

	Positions []*PositionItem
}
