// Copyright (c) 2025 BVK Chaitanya

package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/bvk/corevault/coreact"
	"github.com/bvk/corevault/coresim"
	"github.com/bvk/corevault/epoch"
	"github.com/bvk/corevault/gobs"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

const (
	testUSDC uint32 = 0
	testBTC  uint32 = 1
	testHYPE uint32 = 2

	testBTCMarket  uint32 = 100
	testHYPEMarket uint32 = 101
)

func testConfig() *gobs.HandlerConfig {
	return &gobs.HandlerConfig{
		CoreAccount: "vault",
		USDCTokenID: testUSDC,
		Assets: []gobs.AssetConfig{
			{Name: "BTC", TokenID: testBTC, MarketID: testBTCMarket, PxDecimals: 2},
			{Name: "HYPE", TokenID: testHYPE, MarketID: testHYPEMarket, PxDecimals: 4},
		},
		MaxDeviationBps: 500,
	}
}

func newTestSim() *coresim.Sim {
	s := coresim.New(&coresim.Options{Actor: "vault", USDCToken: testUSDC})
	s.AddToken(testUSDC, &hlcore.TokenInfo{
		Name:     "USDC",
		Decimals: units.TokenDecimalProfile{SzDecimals: 6, WeiDecimals: 6},
	})
	s.AddToken(testBTC, &hlcore.TokenInfo{
		Name:     "BTC",
		Decimals: units.TokenDecimalProfile{SzDecimals: 5, WeiDecimals: 8},
	})
	s.AddToken(testHYPE, &hlcore.TokenInfo{
		Name:     "HYPE",
		Decimals: units.TokenDecimalProfile{SzDecimals: 2, WeiDecimals: 8},
	})
	s.AddMarket(testBTCMarket, testBTC, testUSDC, 2)
	s.SetSpotPx(testBTCMarket, decimal.NewFromInt(5000000)) // $50000.00
	s.SetBBO(testBTCMarket, decimal.NewFromInt(4999900), decimal.NewFromInt(5000000))
	s.AddMarket(testHYPEMarket, testHYPE, testUSDC, 4)
	s.SetSpotPx(testHYPEMarket, decimal.NewFromInt(250000)) // $25.0000
	s.SetBBO(testHYPEMarket, decimal.NewFromInt(249900), decimal.NewFromInt(250000))
	s.CreateAccount("vault")
	return s
}

func newTestHandler(t *testing.T, cfg *gobs.HandlerConfig, sim *coresim.Sim) *Handler {
	t.Helper()
	h, err := New(cfg, nil, sim, sim, sim)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func usd1e18(v int64) decimal.Decimal {
	return decimal.New(v, 18)
}

func TestRebalanceBuys(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000)) // $1000
	h := newTestHandler(t, testConfig(), sim)

	st, err := h.Rebalance(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.OrdersPlaced != 2 {
		t.Fatalf("want 2 orders, got %d", st.OrdersPlaced)
	}
	if !st.Equity1e18.Equal(usd1e18(1000)) {
		t.Fatalf("want equity 1000e18, got %s", st.Equity1e18)
	}
	if d := st.Deltas1e18["BTC"]; !d.Equal(usd1e18(500)) {
		t.Fatalf("want BTC delta 500e18, got %s", d)
	}
	if d := st.Deltas1e18["HYPE"]; !d.Equal(usd1e18(500)) {
		t.Fatalf("want HYPE delta 500e18, got %s", d)
	}

	sent := sim.SentOrders()
	if len(sent) != 2 {
		t.Fatalf("want 2 sent orders, got %d", len(sent))
	}
	// $500 at $50000 with szDecimals=5 is 1000 sz; $500 at $25 with
	// szDecimals=2 is 2000 sz.
	if sent[0].SizeSz != 1000 || !sent[0].IsBuy {
		t.Fatalf("bad BTC order %+v", sent[0])
	}
	if sent[1].SizeSz != 2000 || !sent[1].IsBuy {
		t.Fatalf("bad HYPE order %+v", sent[1])
	}
	if sent[0].ClientOrderID == sent[1].ClientOrderID {
		t.Fatalf("client order ids must be distinct")
	}

	// Fills surface on the next evaluation, not in this one.
	if p := st.Positions[0]; !p.BalanceSz.IsZero() {
		t.Fatalf("fill visible in the dispatching call: %s", p.BalanceSz)
	}
	sim.AdvanceBlocks(1)

	after, err := h.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p := after.Positions[0]; !p.BalanceSz.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("want BTC balance 1000 sz, got %s", p.BalanceSz)
	}
	if p := after.Positions[1]; !p.BalanceSz.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("want HYPE balance 2000 sz, got %s", p.BalanceSz)
	}
}

func TestRebalanceConverged(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000))
	cfg := testConfig()
	cfg.DeadbandBps = 50
	h := newTestHandler(t, cfg, sim)

	if _, err := h.Rebalance(ctx, nil); err != nil {
		t.Fatal(err)
	}
	sim.AdvanceBlocks(1)

	// Positions now sit at target; the second pass must not churn.
	st, err := h.Rebalance(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.OrdersPlaced != 0 {
		t.Fatalf("want no orders at equilibrium, got %d", st.OrdersPlaced)
	}
}

func TestGuardSkipsOrders(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000))
	h := newTestHandler(t, testConfig(), sim)

	// Seed the guard references.
	if _, err := h.Rebalance(ctx, nil); err != nil {
		t.Fatal(err)
	}
	sim.AdvanceBlocks(1)
	before := len(sim.SentOrders())

	// A +20% jump on a 500 bps band deviates BTC.
	sim.SetSpotPx(testBTCMarket, decimal.NewFromInt(6000000))
	sim.SetBBO(testBTCMarket, decimal.NewFromInt(5999900), decimal.NewFromInt(6000000))

	st, err := h.Rebalance(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	// The BTC position is valued at the clamped band edge, not the raw
	// jump: 50000 * 1.05 = 52500.
	if p := st.Positions[0]; !p.Px1e8.Equal(decimal.New(52500, 8)) {
		t.Fatalf("want clamped px 52500e8, got %s", p.Px1e8)
	}
	for _, o := range sim.SentOrders()[before:] {
		if o.Asset == testBTCMarket+coreact.SpotMarketOffset {
			t.Fatalf("deviated asset must not trade: %+v", o)
		}
	}
}

func TestRebalanceRateLimited(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000))
	cfg := testConfig()
	cfg.MaxNotionalPerEpoch1e18 = usd1e18(100)
	cfg.EpochBlocks = 100
	h := newTestHandler(t, cfg, sim)

	if _, err := h.Rebalance(ctx, nil); !errors.Is(err, epoch.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if sent := sim.SentOrders(); len(sent) != 0 {
		t.Fatalf("rate limited pass must not dispatch, got %d orders", len(sent))
	}
}

func TestDeployRateLimitedStillCompletes(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	cfg := testConfig()
	cfg.MaxNotionalPerEpoch1e18 = usd1e18(100)
	cfg.EpochBlocks = 100
	h := newTestHandler(t, cfg, sim)

	// The deposit path completes with orders skipped; capital still lands
	// on the venue.
	if err := h.Deploy(ctx, units.New(usd1e18(1000), units.Usd1e18)); err != nil {
		t.Fatal(err)
	}
	if sent := sim.SentOrders(); len(sent) != 0 {
		t.Fatalf("want no orders, got %d", len(sent))
	}
	eq, err := h.Equity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := eq.RawIn(units.Usd1e18)
	if !raw.Equal(usd1e18(1000)) {
		t.Fatalf("want equity 1000e18, got %s", raw)
	}
}

type failingWriter struct{}

func (failingWriter) SendAction(ctx context.Context, action []byte) error {
	return errors.New("transport down")
}

func TestDeployOrderDispatchFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	h, err := New(testConfig(), nil, sim, failingWriter{}, sim)
	if err != nil {
		t.Fatal(err)
	}

	// The transfer cannot be unwound once it lands, so a dispatch failure
	// after it must not fail the deposit accounting.
	if err := h.Deploy(ctx, units.New(usd1e18(1000), units.Usd1e18)); err != nil {
		t.Fatal(err)
	}
	if sent := sim.SentOrders(); len(sent) != 0 {
		t.Fatalf("want no orders, got %d", len(sent))
	}
	eq, err := h.Equity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := eq.RawIn(units.Usd1e18)
	if !raw.Equal(usd1e18(1000)) {
		t.Fatalf("want equity 1000e18, got %s", raw)
	}
}

func TestMinOuts(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000))
	h := newTestHandler(t, testConfig(), sim)

	if _, err := h.Rebalance(ctx, []decimal.Decimal{decimal.NewFromInt(1)}); err == nil {
		t.Fatalf("wrong min-out arity must be rejected")
	}

	// The BTC order sizes to 1000 sz, below the demanded minimum.
	minOuts := []decimal.Decimal{decimal.NewFromInt(1500), decimal.Zero}
	if _, err := h.Rebalance(ctx, minOuts); !errors.Is(err, ErrSlippage) {
		t.Fatalf("want ErrSlippage, got %v", err)
	}
}

func TestMinOrderNotional(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000))
	cfg := testConfig()
	cfg.MinOrderNotional1e18 = usd1e18(600)
	h := newTestHandler(t, cfg, sim)

	// Both $500 orders fall below the floor and are skipped quietly.
	st, err := h.Rebalance(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.OrdersPlaced != 0 {
		t.Fatalf("want 0 orders, got %d", st.OrdersPlaced)
	}
}

func TestStatusDoesNotAdvanceGuard(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(1000000000))
	h := newTestHandler(t, testConfig(), sim)

	if _, err := h.Rebalance(ctx, nil); err != nil {
		t.Fatal(err)
	}
	ref, err := h.OraclePx("BTC")
	if err != nil {
		t.Fatal(err)
	}

	sim.SetSpotPx(testBTCMarket, decimal.NewFromInt(6000000))
	for i := 0; i < 3; i++ {
		if _, err := h.Status(ctx); err != nil {
			t.Fatal(err)
		}
	}
	after, err := h.OraclePx("BTC")
	if err != nil {
		t.Fatal(err)
	}
	if !after.Equal(ref) {
		t.Fatalf("status reads moved the guard reference: %s -> %s", ref, after)
	}
}

func TestNoAccount(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	cfg := testConfig()
	cfg.CoreAccount = "missing"
	h := newTestHandler(t, cfg, sim)

	if _, err := h.Rebalance(ctx, nil); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("want ErrNoAccount, got %v", err)
	}
	if err := h.Deploy(ctx, units.New(usd1e18(100), units.Usd1e18)); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("want ErrNoAccount, got %v", err)
	}
}

func TestRecallShort(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim()
	sim.Credit("vault", testUSDC, decimal.NewFromInt(300000000)) // $300
	h := newTestHandler(t, testConfig(), sim)

	got, err := h.Recall(ctx, units.New(usd1e18(500), units.Usd1e18))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := got.RawIn(units.Usd1e18)
	if !raw.Equal(usd1e18(300)) {
		t.Fatalf("want 300e18, got %s", raw)
	}
}
