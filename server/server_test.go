// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/coresim"
	"github.com/bvk/corevault/gobs"
	"github.com/bvk/corevault/handler"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/kvutil"
	"github.com/bvk/corevault/units"
	"github.com/bvk/corevault/vault"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

func usd1e18(v int64) decimal.Decimal {
	return decimal.New(v, 18)
}

func newTestSim() *coresim.Sim {
	s := coresim.New(&coresim.Options{Actor: "vault", USDCToken: 0})
	s.AddToken(0, &hlcore.TokenInfo{
		Name:     "USDC",
		Decimals: units.TokenDecimalProfile{SzDecimals: 6, WeiDecimals: 6},
	})
	s.AddToken(1, &hlcore.TokenInfo{
		Name:     "BTC",
		Decimals: units.TokenDecimalProfile{SzDecimals: 5, WeiDecimals: 8},
	})
	s.AddToken(2, &hlcore.TokenInfo{
		Name:     "HYPE",
		Decimals: units.TokenDecimalProfile{SzDecimals: 2, WeiDecimals: 8},
	})
	s.AddMarket(100, 1, 0, 2)
	s.SetSpotPx(100, decimal.NewFromInt(5000000))
	s.SetBBO(100, decimal.NewFromInt(4999900), decimal.NewFromInt(5000000))
	s.AddMarket(101, 2, 0, 4)
	s.SetSpotPx(101, decimal.NewFromInt(250000))
	s.SetBBO(101, decimal.NewFromInt(249900), decimal.NewFromInt(250000))
	s.CreateAccount("vault")
	return s
}

func seedTestDB(t *testing.T, db kv.Database) {
	t.Helper()
	ctx := context.Background()

	hcfg := &gobs.HandlerConfig{
		CoreAccount: "vault",
		USDCTokenID: 0,
		Assets: []gobs.AssetConfig{
			{Name: "BTC", TokenID: 1, MarketID: 100, PxDecimals: 2},
			{Name: "HYPE", TokenID: 2, MarketID: 101, PxDecimals: 4},
		},
		MaxDeviationBps: 500,
	}
	vcfg := &gobs.VaultConfig{
		WithdrawFeeBps: 50,
		AutoDeployBps:  5000,
	}
	seed := func(ctx context.Context, rw kv.ReadWriter) error {
		if err := kvutil.Set(ctx, rw, handler.ConfigKey, hcfg); err != nil {
			return err
		}
		if err := kvutil.Set(ctx, rw, handler.StateKey, &gobs.HandlerState{}); err != nil {
			return err
		}
		if err := kvutil.Set(ctx, rw, vault.ConfigKey, vcfg); err != nil {
			return err
		}
		return kvutil.Set(ctx, rw, vault.StateKey, &gobs.VaultState{})
	}
	if err := kv.WithReadWriter(ctx, db, seed); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T, secrets *Secrets, db kv.Database, sim *coresim.Sim) *Server {
	t.Helper()
	ctx := context.Background()
	venue := &Venue{Reader: sim, Writer: sim, Bridge: sim}
	s, err := New(ctx, secrets, db, venue, &Options{NoRebalance: true})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDepositWithdrawSettleFlow(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	s := newTestServer(t, nil, db, sim)

	dresp, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if !dresp.Shares.Equal(usd1e18(1000)) {
		t.Fatalf("want 1000e18 shares, got %s", dresp.Shares)
	}
	// Half the deposit deploys to the venue and splits across both markets.
	if len(sim.SentOrders()) != 2 {
		t.Fatalf("want 2 orders, got %d", len(sim.SentOrders()))
	}
	sim.AdvanceBlocks(1)

	sresp, err := s.doShares(ctx, &api.SharesRequest{User: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if !sresp.Shares.Equal(usd1e18(1000)) {
		t.Fatalf("want 1000e18 shares, got %s", sresp.Shares)
	}

	wresp, err := s.doWithdraw(ctx, &api.WithdrawRequest{User: "alice", Shares: usd1e18(400)})
	if err != nil {
		t.Fatal(err)
	}
	if wresp.FeeBps != 50 {
		t.Fatalf("want 50 bps snapshot, got %d", wresp.FeeBps)
	}

	vs, err := s.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs.PendingWithdraws) != 1 || vs.PendingWithdraws[0].ID != wresp.ID {
		t.Fatalf("bad pending queue %+v", vs.PendingWithdraws)
	}

	// Settlement pays out of idle cash.
	net, err := s.doSettle(ctx, &api.SettleRequest{ID: wresp.ID})
	if err != nil {
		t.Fatal(err)
	}
	want := wresp.Gross1e18.Sub(wresp.Gross1e18.Mul(decimal.NewFromInt(50)).Shift(-4).Floor())
	if !net.Net1e18.Equal(want) {
		t.Fatalf("want net %s, got %s", want, net.Net1e18)
	}

	// State survives a restart off the same database.
	s2 := newTestServer(t, nil, db, sim)
	sresp, err = s2.doShares(ctx, &api.SharesRequest{User: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if !sresp.Shares.Equal(usd1e18(600)) {
		t.Fatalf("want 600e18 shares after restart, got %s", sresp.Shares)
	}
	vs, err = s2.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs.PendingWithdraws) != 0 {
		t.Fatalf("settled request resurfaced after restart: %+v", vs.PendingWithdraws)
	}
}

func TestRebalanceEndpoint(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	sim.Credit("vault", 0, decimal.NewFromInt(1000000000)) // $1000
	s := newTestServer(t, nil, db, sim)

	resp, err := s.doRebalance(ctx, &api.RebalanceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.OrdersPlaced != 2 {
		t.Fatalf("want 2 orders, got %d", resp.OrdersPlaced)
	}
	sim.AdvanceBlocks(1)

	hs, err := s.doHandlerStatus(ctx, &api.HandlerStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hs.Positions) != 2 {
		t.Fatalf("want 2 positions, got %d", len(hs.Positions))
	}
	if hs.Positions[0].BalanceSz.IsZero() || hs.Positions[1].BalanceSz.IsZero() {
		t.Fatalf("fills did not land: %+v", hs.Positions)
	}

	// The guard references persist; a restarted server keeps valuing at the
	// committed prices.
	s2 := newTestServer(t, nil, db, sim)
	hs2, err := s2.doHandlerStatus(ctx, &api.HandlerStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !hs2.Positions[0].Px1e8.Equal(hs.Positions[0].Px1e8) {
		t.Fatalf("guard reference lost across restart: %s vs %s",
			hs.Positions[0].Px1e8, hs2.Positions[0].Px1e8)
	}
}

func TestDepositDuringDeviationStillCreditsShares(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	s := newTestServer(t, nil, db, sim)

	// The first deposit seeds the guard reference prices.
	if _, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)}); err != nil {
		t.Fatal(err)
	}
	sim.AdvanceBlocks(1)
	before := len(sim.SentOrders())

	// A +20% jump on a 500 bps band deviates BTC. The deposit still
	// lands and mints shares; only the BTC order is skipped.
	sim.SetSpotPx(100, decimal.NewFromInt(6000000))
	sim.SetBBO(100, decimal.NewFromInt(5999900), decimal.NewFromInt(6000000))

	resp, err := s.doDeposit(ctx, &api.DepositRequest{User: "bob", Amount1e18: usd1e18(500)})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Shares.IsZero() {
		t.Fatalf("shares must be credited despite the deviation")
	}
	for _, o := range sim.SentOrders()[before:] {
		if o.Asset == 10100 {
			t.Fatalf("deviated asset must not trade: %+v", o)
		}
	}
}

type failingWriter struct{}

func (failingWriter) SendAction(ctx context.Context, action []byte) error {
	return errors.New("transport down")
}

func TestDepositCompletesWhenDispatchFails(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	venue := &Venue{Reader: sim, Writer: failingWriter{}, Bridge: sim}
	s, err := New(ctx, nil, db, venue, &Options{NoRebalance: true})
	if err != nil {
		t.Fatal(err)
	}

	// Order dispatch fails after the capital bridged to the venue. The
	// deposit must still mint shares against that capital; otherwise the
	// bridged amount would sit in equity with no shares and misprice the
	// next depositor.
	resp, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Shares.Equal(usd1e18(1000)) {
		t.Fatalf("want 1000e18 shares, got %s", resp.Shares)
	}

	vs, err := s.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !vs.NAV1e18.Equal(usd1e18(1000)) {
		t.Fatalf("want NAV 1000e18, got %s", vs.NAV1e18)
	}
	if !vs.Cash1e18.Equal(usd1e18(500)) {
		t.Fatalf("want cash 500e18, got %s", vs.Cash1e18)
	}
	if !vs.TotalShares.Equal(usd1e18(1000)) {
		t.Fatalf("want 1000e18 total shares, got %s", vs.TotalShares)
	}
}

func adminSecrets(t *testing.T) (*Secrets, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return &Secrets{AdminPublicKey: string(pemData)}, key
}

func TestAdminPause(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	secrets, key := adminSecrets(t)
	s := newTestServer(t, secrets, db, newTestSim())

	signed, err := api.SignRequest(key, &api.PauseRequest{Paused: true})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.doPause(ctx, signed)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Paused {
		t.Fatalf("want paused")
	}

	if _, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(100)}); !errors.Is(err, vault.ErrPaused) {
		t.Fatalf("want ErrPaused, got %v", err)
	}

	// The pause flag is part of the persisted config.
	s2 := newTestServer(t, secrets, db, newTestSim())
	vs, err := s2.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !vs.Paused {
		t.Fatalf("pause flag lost across restart")
	}
}

func TestAdminRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	secrets, _ := adminSecrets(t)
	s := newTestServer(t, secrets, db, newTestSim())

	rogue, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signed, err := api.SignRequest(rogue, &api.PauseRequest{Paused: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.doPause(ctx, signed); err == nil {
		t.Fatalf("rogue signature must be rejected")
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	_, key := adminSecrets(t)
	s := newTestServer(t, nil, db, newTestSim())

	signed, err := api.SignRequest(key, &api.PauseRequest{Paused: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.doPause(ctx, signed); err == nil {
		t.Fatalf("admin endpoints must be disabled without a configured key")
	}
}

func TestAdminSetFees(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	secrets, key := adminSecrets(t)
	s := newTestServer(t, secrets, db, newTestSim())

	req := &api.SetFeesRequest{
		DepositFeeBps:  100,
		WithdrawFeeBps: 25,
	}
	signed, err := api.SignRequest(key, req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.doSetFees(ctx, signed); err != nil {
		t.Fatal(err)
	}

	fq, err := s.doFeeQuote(ctx, &api.FeeQuoteRequest{Amount1e18: usd1e18(100)})
	if err != nil {
		t.Fatal(err)
	}
	if fq.FeeBps != 25 {
		t.Fatalf("want 25 bps, got %d", fq.FeeBps)
	}
}
