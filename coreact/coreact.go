// Copyright (c) 2025 BVK Chaitanya

// Package coreact encodes venue actions as versioned, tagged byte
// sequences: a one-byte version, a one-byte action id and an ABI-style
// payload of big-endian 32-byte words. Dispatch of an encoded action is
// fire-and-forget; there is no synchronous acknowledgement and fills are
// observed only by re-reading balances on a later call.
package coreact

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	Version = 1

	// Action ids.
	ActionLimitOrder = 1

	// SpotMarketOffset addresses a spot market's order-book namespace,
	// distinct from its spot-balance namespace.
	SpotMarketOffset = 10000

	// TifIOC is the only time-in-force this engine ever uses. Unfilled
	// remainders are discarded by the venue, so there is no open-order
	// bookkeeping at all.
	TifIOC = 3
)

const wordSize = 32

// LimitOrder is a spot IOC limit order for one order-book asset.
type LimitOrder struct {
	// Asset is the market id offset by SpotMarketOffset.
	Asset uint32

	IsBuy bool

	// LimitPxRaw is the limit price in the market's raw price base.
	LimitPxRaw uint64

	// SizeSz is the order size in the base token's sz units.
	SizeSz uint64

	Tif uint8

	ClientOrderID uuid.UUID
}

func (o *LimitOrder) Check() error {
	if o.Asset < SpotMarketOffset {
		return fmt.Errorf("asset id %d is not in the order-book namespace", o.Asset)
	}
	if o.SizeSz == 0 {
		return fmt.Errorf("order size cannot be zero")
	}
	if o.LimitPxRaw == 0 {
		return fmt.Errorf("limit price cannot be zero")
	}
	if o.Tif != TifIOC {
		return fmt.Errorf("unsupported time-in-force %d", o.Tif)
	}
	return nil
}

func (o *LimitOrder) Side() string {
	if o.IsBuy {
		return "BUY"
	}
	return "SELL"
}

func putWord(buf []byte, i int, v uint64) {
	binary.BigEndian.PutUint64(buf[i*wordSize+24:(i+1)*wordSize], v)
}

func word(buf []byte, i int) uint64 {
	return binary.BigEndian.Uint64(buf[i*wordSize+24 : (i+1)*wordSize])
}

// EncodeLimitOrder frames and encodes a limit order. The payload tuple is
// {asset, isBuy, limitPxRaw, sizeSz, tif, cloid}, one 32-byte word each.
func EncodeLimitOrder(o *LimitOrder) ([]byte, error) {
	if err := o.Check(); err != nil {
		return nil, fmt.Errorf("invalid limit order: %w", err)
	}
	data := make([]byte, 2+6*wordSize)
	data[0] = Version
	data[1] = ActionLimitOrder

	payload := data[2:]
	putWord(payload, 0, uint64(o.Asset))
	if o.IsBuy {
		putWord(payload, 1, 1)
	}
	putWord(payload, 2, o.LimitPxRaw)
	putWord(payload, 3, o.SizeSz)
	putWord(payload, 4, uint64(o.Tif))
	copy(payload[5*wordSize+16:6*wordSize], o.ClientOrderID[:])
	return data, nil
}

// DecodeLimitOrder is the inverse of EncodeLimitOrder. It is used by the
// venue simulator and by tests; the real venue decodes on its own side.
func DecodeLimitOrder(data []byte) (*LimitOrder, error) {
	if len(data) != 2+6*wordSize {
		return nil, fmt.Errorf("limit order action must be %d bytes, got %d", 2+6*wordSize, len(data))
	}
	if data[0] != Version {
		return nil, fmt.Errorf("unsupported action version %d", data[0])
	}
	if data[1] != ActionLimitOrder {
		return nil, fmt.Errorf("action id %d is not a limit order", data[1])
	}

	payload := data[2:]
	o := &LimitOrder{
		Asset:      uint32(word(payload, 0)),
		IsBuy:      word(payload, 1) != 0,
		LimitPxRaw: word(payload, 2),
		SizeSz:     word(payload, 3),
		Tif:        uint8(word(payload, 4)),
	}
	copy(o.ClientOrderID[:], payload[5*wordSize+16:6*wordSize])
	if err := o.Check(); err != nil {
		return nil, fmt.Errorf("invalid limit order: %w", err)
	}
	return o, nil
}
