// Copyright (c) 2025 BVK Chaitanya

package units

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBaseMismatch(t *testing.T) {
	a := New(decimal.NewFromInt(100), Sz)
	b := New(decimal.NewFromInt(100), Wei)

	if _, err := a.Add(b); err == nil {
		t.Fatalf("adding sz to wei must fail")
	}
	if _, err := a.Sub(b); err == nil {
		t.Fatalf("subtracting wei from sz must fail")
	}
	if _, err := a.Cmp(b); err == nil {
		t.Fatalf("comparing sz with wei must fail")
	}
	if _, err := a.RawIn(Usd1e18); err == nil {
		t.Fatalf("reading sz value in usd base must fail")
	}
}

func TestWeiSzConversions(t *testing.T) {
	p := &TokenDecimalProfile{SzDecimals: 5, WeiDecimals: 8}
	if err := p.Check(); err != nil {
		t.Fatal(err)
	}

	// 1.5 BTC = 150000 sz = 150000000 wei.
	sz := New(decimal.NewFromInt(150000), Sz)
	wei, err := SzToWei(sz, p)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.NewFromInt(150000000); !wei.Raw().Equal(want) {
		t.Fatalf("want %s, got %s", want, wei.Raw())
	}

	back, err := WeiToSz(wei, p)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Raw().Equal(sz.Raw()) {
		t.Fatalf("want %s, got %s", sz.Raw(), back.Raw())
	}
}

func TestWeiSzEqualDecimals(t *testing.T) {
	p := &TokenDecimalProfile{SzDecimals: 6, WeiDecimals: 6}
	raw := decimal.NewFromInt(123456789)

	wei, err := SzToWei(New(raw, Sz), p)
	if err != nil {
		t.Fatal(err)
	}
	if !wei.Raw().Equal(raw) {
		t.Fatalf("want %s, got %s", raw, wei.Raw())
	}
	sz, err := WeiToSz(New(raw, Wei), p)
	if err != nil {
		t.Fatal(err)
	}
	if !sz.Raw().Equal(raw) {
		t.Fatalf("want %s, got %s", raw, sz.Raw())
	}
}

func TestWeiToSzFloors(t *testing.T) {
	p := &TokenDecimalProfile{SzDecimals: 2, WeiDecimals: 5}

	// 1999 wei is 1.999 sz units; the dust below sz resolution drops.
	sz, err := WeiToSz(New(decimal.NewFromInt(1999), Wei), p)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.NewFromInt(1); !sz.Raw().Equal(want) {
		t.Fatalf("want %s, got %s", want, sz.Raw())
	}
}

func TestUSDValue(t *testing.T) {
	p := &TokenDecimalProfile{SzDecimals: 5, WeiDecimals: 8}

	// 2 BTC at $50000: 200000 sz * 5000000000000 (1e8 px) = 1e23 usd1e18.
	amount := New(decimal.NewFromInt(200000), Sz)
	price := New(decimal.New(50000, 8), Px1e8)
	usd, err := USDValue(amount, price, p)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.New(100000, 18); !usd.Raw().Equal(want) {
		t.Fatalf("want %s, got %s", want, usd.Raw())
	}

	if _, err := USDValue(amount, New(decimal.NewFromInt(1), Usd1e18), p); err == nil {
		t.Fatalf("usd-base price must be rejected")
	}
}

func TestTokenDecimalProfileCheck(t *testing.T) {
	bad := []TokenDecimalProfile{
		{SzDecimals: -1, WeiDecimals: 8},
		{SzDecimals: 19, WeiDecimals: 19},
		{SzDecimals: 8, WeiDecimals: 5},
	}
	for i, p := range bad {
		if err := p.Check(); err == nil {
			t.Errorf("profile %d: want error, got nil", i)
		}
	}
}
