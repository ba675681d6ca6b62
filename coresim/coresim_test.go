// Copyright (c) 2025 BVK Chaitanya

package coresim

import (
	"context"
	"testing"

	"github.com/bvk/corevault/coreact"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/units"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	testUSDC uint32 = 0
	testBTC  uint32 = 1

	testMarket uint32 = 100
)

func newTestSim() *Sim {
	s := New(&Options{Actor: "vault", USDCToken: testUSDC, FillDelayBlocks: 2})
	s.AddToken(testUSDC, &hlcore.TokenInfo{
		Name:     "USDC",
		Decimals: units.TokenDecimalProfile{SzDecimals: 6, WeiDecimals: 6},
	})
	s.AddToken(testBTC, &hlcore.TokenInfo{
		Name:     "BTC",
		Decimals: units.TokenDecimalProfile{SzDecimals: 5, WeiDecimals: 8},
	})
	s.AddMarket(testMarket, testBTC, testUSDC, 2)
	s.SetSpotPx(testMarket, decimal.NewFromInt(5000000))
	s.SetBBO(testMarket, decimal.NewFromInt(4999900), decimal.NewFromInt(5000000))
	s.CreateAccount("vault")
	return s
}

func sendOrder(t *testing.T, s *Sim, isBuy bool, pxRaw, sizeSz uint64) {
	t.Helper()
	order := &coreact.LimitOrder{
		Asset:         testMarket + coreact.SpotMarketOffset,
		IsBuy:         isBuy,
		LimitPxRaw:    pxRaw,
		SizeSz:        sizeSz,
		Tif:           coreact.TifIOC,
		ClientOrderID: uuid.New(),
	}
	data, err := coreact.EncodeLimitOrder(order)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SendAction(context.Background(), data); err != nil {
		t.Fatal(err)
	}
}

func balance(t *testing.T, s *Sim, token uint32) decimal.Decimal {
	t.Helper()
	b, err := s.SpotBalance(context.Background(), "vault", token)
	if err != nil {
		t.Fatal(err)
	}
	return b.Total
}

func TestFillDelay(t *testing.T) {
	ctx := context.Background()
	s := newTestSim()
	s.Credit("vault", testUSDC, decimal.NewFromInt(100000000000)) // $100000

	// Buy 0.02 BTC = 2000 sz at the ask.
	sendOrder(t, s, true, 5000000, 2000)

	// The fill is not visible until the delay elapses.
	if got := balance(t, s, testBTC); !got.IsZero() {
		t.Fatalf("fill visible immediately: %s", got)
	}
	s.AdvanceBlocks(1)
	if got := balance(t, s, testBTC); !got.IsZero() {
		t.Fatalf("fill visible one block early: %s", got)
	}
	s.AdvanceBlocks(1)

	// 0.02 BTC = 2000000 wei; $1000 = 1000000000 USDC wei spent.
	if got, want := balance(t, s, testBTC), decimal.NewFromInt(2000000); !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
	if got, want := balance(t, s, testUSDC), decimal.NewFromInt(99000000000); !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}

	height, err := s.BlockHeight(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if height != 2 {
		t.Fatalf("want height 2, got %d", height)
	}
}

func TestIOCNoCross(t *testing.T) {
	s := newTestSim()

	// A buy priced below the ask never fills.
	sendOrder(t, s, true, 4999800, 2000)
	s.AdvanceBlocks(10)
	if got := balance(t, s, testBTC); !got.IsZero() {
		t.Fatalf("non-crossing buy must be discarded, got %s", got)
	}

	// The order was still observed by the venue.
	if sent := s.SentOrders(); len(sent) != 1 {
		t.Fatalf("want 1 sent order, got %d", len(sent))
	}
}

func TestSellFillsAtBid(t *testing.T) {
	s := newTestSim()
	s.Credit("vault", testBTC, decimal.NewFromInt(2000000)) // 0.02 BTC

	sendOrder(t, s, false, 4999000, 2000)
	s.AdvanceBlocks(2)

	if got := balance(t, s, testBTC); !got.IsZero() {
		t.Fatalf("want zero BTC, got %s", got)
	}
	// Fill happens at the bid 49999.00, not the limit: $999.98.
	if got, want := balance(t, s, testUSDC), decimal.NewFromInt(999980000); !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestBridge(t *testing.T) {
	ctx := context.Background()
	s := newTestSim()

	if err := s.TransferToCore(ctx, units.New(decimal.New(500, 18), units.Usd1e18)); err != nil {
		t.Fatal(err)
	}
	if got, want := balance(t, s, testUSDC), decimal.NewFromInt(500000000); !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}

	// Recalling more than the balance returns only what is there.
	got, err := s.RecallFromCore(ctx, units.New(decimal.New(800, 18), units.Usd1e18))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := got.RawIn(units.Usd1e18)
	if want := decimal.New(500, 18); !raw.Equal(want) {
		t.Fatalf("want %s, got %s", want, raw)
	}
	if got := balance(t, s, testUSDC); !got.IsZero() {
		t.Fatalf("want zero USDC after recall, got %s", got)
	}
}

func TestUnknownIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestSim()

	if _, err := s.TokenInfo(ctx, 99); err == nil {
		t.Fatalf("unknown token must be rejected")
	}
	if _, err := s.SpotPx(ctx, 99); err == nil {
		t.Fatalf("unknown market must be rejected")
	}
	if _, err := s.BBO(ctx, coreact.SpotMarketOffset+99); err == nil {
		t.Fatalf("unknown order-book asset must be rejected")
	}
	exists, err := s.AccountExists(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatalf("unknown account must not exist")
	}
}
