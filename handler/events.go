// Copyright (c) 2025 BVK Chaitanya

package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Path identifies which entry point triggered an evaluation. Guard skips
// are reported per path so off-chain monitoring can tell a skipped deposit
// deployment from a skipped rebalance.
type Path string

const (
	DepositPath   Path = "deposit"
	RebalancePath Path = "rebalance"
)

type Event interface {
	EventTime() time.Time
}

type eventStamp struct {
	Time time.Time
}

func (e eventStamp) EventTime() time.Time { return e.Time }

// GuardSkipEvent reports that order placement for one asset was skipped
// because its oracle read fell outside the deviation band. The call's
// accounting still completed.
type GuardSkipEvent struct {
	eventStamp

	Asset string
	Path  Path

	RawPx1e8     decimal.Decimal
	ClampedPx1e8 decimal.Decimal
}

// OrderEvent reports one dispatched order.
type OrderEvent struct {
	eventStamp

	Asset string
	Side  string

	ClientOrderID uuid.UUID

	LimitPx1e8   decimal.Decimal
	SizeSz       decimal.Decimal
	Notional1e18 decimal.Decimal
}

// RateLimitEvent reports an order rejected by the epoch notional limiter.
type RateLimitEvent struct {
	eventStamp

	Asset string
	Path  Path

	Notional1e18 decimal.Decimal
	WindowStart  uint64
	Sent1e18     decimal.Decimal
}

// RebalanceEvent reports one completed evaluation with its per-asset USD
// deltas and the number of orders dispatched.
type RebalanceEvent struct {
	eventStamp

	Path Path

	Equity1e18 decimal.Decimal
	Deltas1e18 map[string]decimal.Decimal

	Orders int
}

// ConfigEvent reports an admin parameter change.
type ConfigEvent struct {
	eventStamp

	Field string
	Value string
}
