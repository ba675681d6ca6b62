// Copyright (c) 2025 BVK Chaitanya

package vault

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event interface {
	EventTime() time.Time
}

type eventStamp struct {
	Time time.Time
}

func (e eventStamp) EventTime() time.Time { return e.Time }

// DepositEvent reports one accepted deposit.
type DepositEvent struct {
	eventStamp

	User string

	Gross1e18    decimal.Decimal
	Fee1e18      decimal.Decimal
	Shares       decimal.Decimal
	Deployed1e18 decimal.Decimal
}

// WithdrawQueuedEvent reports a withdrawal request entering the queue.
// Shares are already burned when this event fires.
type WithdrawQueuedEvent struct {
	eventStamp

	ID   uint64
	User string

	Shares       decimal.Decimal
	Gross1e18    decimal.Decimal
	FeeBpsFrozen uint32
}

// WithdrawSettledEvent reports a queued withdrawal paying out.
type WithdrawSettledEvent struct {
	eventStamp

	ID   uint64
	User string

	Net1e18 decimal.Decimal
	Fee1e18 decimal.Decimal
}

// PauseEvent reports the pause flag changing.
type PauseEvent struct {
	eventStamp

	Paused bool
}

// ConfigEvent reports an admin parameter change.
type ConfigEvent struct {
	eventStamp

	Field string
	Value string
}
