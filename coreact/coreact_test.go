// Copyright (c) 2025 BVK Chaitanya

package coreact

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeLimitOrder(t *testing.T) {
	o := &LimitOrder{
		Asset:         SpotMarketOffset + 7,
		IsBuy:         true,
		LimitPxRaw:    4999900,
		SizeSz:        2000,
		Tif:           TifIOC,
		ClientOrderID: uuid.New(),
	}

	data, err := EncodeLimitOrder(o)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2+6*wordSize {
		t.Fatalf("want %d bytes, got %d", 2+6*wordSize, len(data))
	}

	back, err := DecodeLimitOrder(data)
	if err != nil {
		t.Fatal(err)
	}
	if *back != *o {
		t.Fatalf("want %+v, got %+v", o, back)
	}
}

func TestEncodeLayout(t *testing.T) {
	cloid := uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10")
	o := &LimitOrder{
		Asset:         SpotMarketOffset,
		IsBuy:         false,
		LimitPxRaw:    0x0102030405,
		SizeSz:        0xff,
		Tif:           TifIOC,
		ClientOrderID: cloid,
	}
	data, err := EncodeLimitOrder(o)
	if err != nil {
		t.Fatal(err)
	}

	if data[0] != Version || data[1] != ActionLimitOrder {
		t.Fatalf("bad frame header % x", data[:2])
	}
	payload := data[2:]

	// Each value is big-endian in the low bytes of its 32-byte word.
	if got := payload[wordSize-2:]; got[0] != 0x27 || got[1] != 0x10 {
		t.Fatalf("asset word tail: % x", payload[:wordSize])
	}
	for _, b := range payload[wordSize : 2*wordSize] {
		if b != 0 {
			t.Fatalf("sell order must encode isBuy as zero word")
		}
	}
	if got := payload[3*wordSize-5 : 3*wordSize]; !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("limit px word tail: % x", got)
	}
	if payload[4*wordSize-1] != 0xff {
		t.Fatalf("size word tail: % x", payload[3*wordSize:4*wordSize])
	}
	if payload[5*wordSize-1] != TifIOC {
		t.Fatalf("tif word tail: % x", payload[4*wordSize:5*wordSize])
	}
	// The cloid occupies the trailing 16 bytes of the last word.
	if got := payload[5*wordSize+16 : 6*wordSize]; !bytes.Equal(got, cloid[:]) {
		t.Fatalf("cloid bytes: % x", got)
	}
	for _, b := range payload[5*wordSize : 5*wordSize+16] {
		if b != 0 {
			t.Fatalf("cloid word head must be zero padded")
		}
	}
}

func TestCheckRejectsBadOrders(t *testing.T) {
	good := LimitOrder{
		Asset:         SpotMarketOffset + 1,
		IsBuy:         true,
		LimitPxRaw:    100,
		SizeSz:        10,
		Tif:           TifIOC,
		ClientOrderID: uuid.New(),
	}

	for name, mutate := range map[string]func(*LimitOrder){
		"asset below offset": func(o *LimitOrder) { o.Asset = 5 },
		"zero size":          func(o *LimitOrder) { o.SizeSz = 0 },
		"zero price":         func(o *LimitOrder) { o.LimitPxRaw = 0 },
		"bad tif":            func(o *LimitOrder) { o.Tif = 1 },
	} {
		o := good
		mutate(&o)
		if _, err := EncodeLimitOrder(&o); err == nil {
			t.Errorf("%s: want error, got nil", name)
		}
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	o := &LimitOrder{
		Asset:         SpotMarketOffset + 1,
		IsBuy:         true,
		LimitPxRaw:    100,
		SizeSz:        10,
		Tif:           TifIOC,
		ClientOrderID: uuid.New(),
	}
	data, err := EncodeLimitOrder(o)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecodeLimitOrder(data[:len(data)-1]); err == nil {
		t.Fatalf("short frame must be rejected")
	}

	bad := bytes.Clone(data)
	bad[0] = Version + 1
	if _, err := DecodeLimitOrder(bad); err == nil {
		t.Fatalf("unknown version must be rejected")
	}

	bad = bytes.Clone(data)
	bad[1] = 99
	if _, err := DecodeLimitOrder(bad); err == nil {
		t.Fatalf("unknown action id must be rejected")
	}
}
