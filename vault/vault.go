// Copyright (c) 2025 BVK Chaitanya

// Package vault implements the pooled-capital share ledger: NAV and
// price-per-share accounting, fee-bearing deposits with automatic capital
// deployment and a two-phase withdrawal queue. The vault owns no venue
// logic; it drives a CoreHandler for equity reads and capital movement.
//
// A Vault is not safe for concurrent use. The server serializes all entry
// points behind one mutex, matching the single-writer discipline of the
// ledger this accounting mirrors.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bvk/corevault/gobs"
	"github.com/bvk/corevault/kvutil"
	"github.com/bvk/corevault/units"
	"github.com/bvkgo/kv"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

const (
	ConfigKey = "/vault/config"
	StateKey  = "/vault/state"

	WithdrawKeyspace = "/vault/withdraws"
)

var (
	// ErrPaused is reported by deposit and withdraw entry points while the
	// vault is paused. Settlement of already-queued withdrawals stays open.
	ErrPaused = errors.New("vault is paused")

	// ErrInsufficientBalance is reported when a user redeems more shares
	// than they hold.
	ErrInsufficientBalance = errors.New("insufficient share balance")

	// ErrBelowMinNotional is reported when a deposit is below the
	// configured minimum.
	ErrBelowMinNotional = errors.New("amount below minimum notional")

	// ErrBadConfig wraps all configuration validation failures.
	ErrBadConfig = errors.New("invalid configuration")
)

var (
	one1e18  = decimal.New(1, 18)
	bps10000 = decimal.NewFromInt(10000)
)

// CoreHandler is the venue-side engine the vault deploys capital through.
type CoreHandler interface {
	// Equity returns the venue-side equity in 1e18 USD.
	Equity(ctx context.Context) (units.Quantity, error)

	// Deploy forwards settlement capital to the venue and allocates it.
	Deploy(ctx context.Context, usd units.Quantity) error

	// Recall pulls settlement capital back, returning the amount actually
	// recalled.
	Recall(ctx context.Context, usd units.Quantity) (units.Quantity, error)
}

type Vault struct {
	cfg gobs.VaultConfig

	state gobs.VaultState

	// withdraws holds the unsettled queue plus any requests settled since
	// the last Save. Settled entries drop out of memory once persisted.
	withdraws map[uint64]*gobs.WithdrawRequest

	core CoreHandler

	events *topic.Topic[Event]
}

func checkConfig(cfg *gobs.VaultConfig) error {
	if cfg.DepositFeeBps > 10000 || cfg.WithdrawFeeBps > 10000 || cfg.AutoDeployBps > 10000 {
		return fmt.Errorf("bps parameter out of range: %w", ErrBadConfig)
	}
	for _, tier := range cfg.WithdrawFeeTiers {
		if tier.FeeBps > 10000 {
			return fmt.Errorf("tier fee %d bps is out of range: %w", tier.FeeBps, ErrBadConfig)
		}
		if tier.MinAmount1e18.IsNegative() {
			return fmt.Errorf("tier min amount %s cannot be negative: %w", tier.MinAmount1e18, ErrBadConfig)
		}
	}
	if cfg.MinDepositUsd1e18.IsNegative() {
		return fmt.Errorf("min deposit %s cannot be negative: %w", cfg.MinDepositUsd1e18, ErrBadConfig)
	}
	return nil
}

func New(cfg *gobs.VaultConfig, state *gobs.VaultState, core CoreHandler) (*Vault, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid vault config: %w", err)
	}
	if state == nil {
		state = &gobs.VaultState{}
	}
	if state.ShareMap == nil {
		state.ShareMap = make(map[string]decimal.Decimal)
	}
	return &Vault{
		cfg:       *cfg,
		state:     *state,
		withdraws: make(map[uint64]*gobs.WithdrawRequest),
		core:      core,
		events:    topic.New[Event](),
	}, nil
}

// Load restores the vault and its unsettled withdrawal queue from the
// database.
func Load(ctx context.Context, r kv.Reader, core CoreHandler) (*Vault, error) {
	cfg, err := kvutil.Get[gobs.VaultConfig](ctx, r, ConfigKey)
	if err != nil {
		return nil, fmt.Errorf("could not load vault config: %w", err)
	}
	state, err := kvutil.Get[gobs.VaultState](ctx, r, StateKey)
	if err != nil {
		return nil, fmt.Errorf("could not load vault state: %w", err)
	}
	v, err := New(cfg, state, core)
	if err != nil {
		return nil, err
	}

	begin, end := kvutil.PathRange(WithdrawKeyspace)
	loader := func(ctx context.Context, r kv.Reader, key string, req *gobs.WithdrawRequest) error {
		if !req.Settled {
			v.withdraws[req.ID] = req
		}
		return nil
	}
	if err := kvutil.Ascend(ctx, r, begin, end, loader); err != nil {
		return nil, fmt.Errorf("could not load withdrawal queue: %w", err)
	}
	return v, nil
}

func withdrawKey(id uint64) string {
	return fmt.Sprintf("%s/%016x", WithdrawKeyspace, id)
}

func (v *Vault) Save(ctx context.Context, rw kv.ReadWriter) error {
	state := v.state
	if err := kvutil.Set(ctx, rw, StateKey, &state); err != nil {
		return fmt.Errorf("could not save vault state: %w", err)
	}
	for id, req := range v.withdraws {
		if err := kvutil.Set(ctx, rw, withdrawKey(id), req); err != nil {
			return fmt.Errorf("could not save withdraw request %d: %w", id, err)
		}
	}
	for id, req := range v.withdraws {
		if req.Settled {
			delete(v.withdraws, id)
		}
	}
	return nil
}

func (v *Vault) SaveConfig(ctx context.Context, rw kv.ReadWriter) error {
	cfg := v.cfg
	if err := kvutil.Set(ctx, rw, ConfigKey, &cfg); err != nil {
		return fmt.Errorf("could not save vault config: %w", err)
	}
	return nil
}

func (v *Vault) Config() gobs.VaultConfig {
	return v.cfg
}

func (v *Vault) Events() (*topic.Receiver[Event], error) {
	return topic.Subscribe(v.events, 16, false)
}

func (v *Vault) emit(ev Event) {
	v.events.Send(ev)
}

func stamp() eventStamp {
	return eventStamp{Time: time.Now()}
}

// NAV1e18 is the pool's net asset value: venue equity plus idle cash minus
// unsettled withdrawal obligations. The pending claims already belong to
// the withdrawing users, so they never dilute or inflate remaining shares.
func (v *Vault) NAV1e18(ctx context.Context) (decimal.Decimal, error) {
	equity, err := v.core.Equity(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("could not read core equity: %w", err)
	}
	value, err := equity.RawIn(units.Usd1e18)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value.Add(v.state.Cash1e18).Sub(v.state.Pending1e18), nil
}

// PPS1e18 is the 1e18-scaled price per share, NAV/totalShares. An empty
// pool prices at exactly 1e18 so the first deposit mints 1:1.
func (v *Vault) PPS1e18(ctx context.Context) (decimal.Decimal, error) {
	if v.state.TotalShares.IsZero() {
		return one1e18, nil
	}
	nav, err := v.NAV1e18(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if nav.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("nav %s is not positive with %s shares outstanding", nav, v.state.TotalShares)
	}
	pps, _ := nav.Mul(one1e18).QuoRem(v.state.TotalShares, 0)
	return pps, nil
}

func (v *Vault) TotalShares() decimal.Decimal {
	return v.state.TotalShares
}

func (v *Vault) SharesOf(user string) decimal.Decimal {
	return v.state.ShareMap[user]
}

func (v *Vault) Cash1e18() decimal.Decimal {
	return v.state.Cash1e18
}

func (v *Vault) Pending1e18() decimal.Decimal {
	return v.state.Pending1e18
}

// WithdrawFeeBpsForAmount returns the fee that a withdrawal of the given
// gross 1e18 USD amount would pay right now. Tiers override the default
// fee; the tier with the largest minimum at or below the amount wins.
func (v *Vault) WithdrawFeeBpsForAmount(gross1e18 decimal.Decimal) uint32 {
	feeBps := v.cfg.WithdrawFeeBps
	best := decimal.Decimal{}
	matched := false
	for _, tier := range v.cfg.WithdrawFeeTiers {
		if tier.MinAmount1e18.LessThanOrEqual(gross1e18) {
			if !matched || tier.MinAmount1e18.GreaterThan(best) {
				best = tier.MinAmount1e18
				feeBps = tier.FeeBps
				matched = true
			}
		}
	}
	return feeBps
}

// Deposit accepts a 1e18 USD amount for a user, mints shares at the
// current price per share and forwards the configured fraction of the net
// amount to the core handler. The deposit fee stays in the pool, accruing
// to existing holders. Returns the number of shares minted.
func (v *Vault) Deposit(ctx context.Context, user string, gross1e18 decimal.Decimal) (decimal.Decimal, error) {
	if v.cfg.Paused {
		return decimal.Decimal{}, ErrPaused
	}
	if len(user) == 0 {
		return decimal.Decimal{}, fmt.Errorf("user cannot be empty")
	}
	if gross1e18.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("deposit amount %s must be positive", gross1e18)
	}
	if gross1e18.LessThan(v.cfg.MinDepositUsd1e18) {
		return decimal.Decimal{}, fmt.Errorf("deposit %s is below minimum %s: %w", gross1e18, v.cfg.MinDepositUsd1e18, ErrBelowMinNotional)
	}

	// Price before the new capital enters the pool.
	pps, err := v.PPS1e18(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	fee := gross1e18.Mul(decimal.NewFromInt(int64(v.cfg.DepositFeeBps))).Shift(-4).Floor()
	net := gross1e18.Sub(fee)
	shares, _ := net.Mul(one1e18).QuoRem(pps, 0)
	if shares.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("deposit %s mints zero shares at pps %s", gross1e18, pps)
	}

	v.state.TotalShares = v.state.TotalShares.Add(shares)
	v.state.ShareMap[user] = v.state.ShareMap[user].Add(shares)
	v.state.Cash1e18 = v.state.Cash1e18.Add(gross1e18)

	deploy := net.Mul(decimal.NewFromInt(int64(v.cfg.AutoDeployBps))).Shift(-4).Floor()
	if deploy.Sign() > 0 {
		v.state.Cash1e18 = v.state.Cash1e18.Sub(deploy)
		if err := v.core.Deploy(ctx, units.New(deploy, units.Usd1e18)); err != nil {
			// Undo everything; a deposit either fully lands or not at all.
			v.state.TotalShares = v.state.TotalShares.Sub(shares)
			v.state.ShareMap[user] = v.state.ShareMap[user].Sub(shares)
			if v.state.ShareMap[user].IsZero() {
				delete(v.state.ShareMap, user)
			}
			v.state.Cash1e18 = v.state.Cash1e18.Sub(gross1e18).Add(deploy)
			return decimal.Decimal{}, fmt.Errorf("could not deploy deposit capital: %w", err)
		}
	}

	log.Printf("deposit by %q: gross %s fee %s shares %s deployed %s", user, gross1e18, fee, shares, deploy)
	v.emit(&DepositEvent{stamp(), user, gross1e18, fee, shares, deploy})
	return shares, nil
}

// Withdraw burns the user's shares immediately and queues a payout
// request valued at the current price per share. The fee schedule in
// effect now is frozen into the request; settlement happens later through
// Settle once capital is available.
func (v *Vault) Withdraw(ctx context.Context, user string, shares decimal.Decimal) (*gobs.WithdrawRequest, error) {
	if v.cfg.Paused {
		return nil, ErrPaused
	}
	if shares.Sign() <= 0 {
		return nil, fmt.Errorf("share amount %s must be positive", shares)
	}
	held := v.state.ShareMap[user]
	if held.LessThan(shares) {
		return nil, fmt.Errorf("user %q holds %s shares, wants %s: %w", user, held, shares, ErrInsufficientBalance)
	}

	pps, err := v.PPS1e18(ctx)
	if err != nil {
		return nil, err
	}
	gross, _ := shares.Mul(pps).QuoRem(one1e18, 0)

	v.state.TotalShares = v.state.TotalShares.Sub(shares)
	v.state.ShareMap[user] = held.Sub(shares)
	if v.state.ShareMap[user].IsZero() {
		delete(v.state.ShareMap, user)
	}
	v.state.Pending1e18 = v.state.Pending1e18.Add(gross)

	req := &gobs.WithdrawRequest{
		ID:             v.state.NextWithdrawID,
		User:           user,
		Shares:         shares,
		GrossUsd1e18:   gross,
		FeeBpsSnapshot: v.WithdrawFeeBpsForAmount(gross),
		CreateTime:     time.Now(),
	}
	v.state.NextWithdrawID++
	v.withdraws[req.ID] = req

	log.Printf("withdraw %d by %q: shares %s gross %s fee %d bps", req.ID, user, shares, gross, req.FeeBpsSnapshot)
	v.emit(&WithdrawQueuedEvent{stamp(), req.ID, user, shares, gross, req.FeeBpsSnapshot})
	return req, nil
}

// Settle pays out one queued withdrawal. When idle cash is short the
// difference is recalled from the venue first; a short recall leaves the
// request queued and fails the call. Returns the net 1e18 USD payout. The
// frozen fee snapshot applies even if the schedule changed since the
// request was made.
func (v *Vault) Settle(ctx context.Context, id uint64) (decimal.Decimal, error) {
	req, ok := v.withdraws[id]
	if !ok || req.Settled {
		return decimal.Decimal{}, fmt.Errorf("no unsettled withdraw request %d", id)
	}

	if v.state.Cash1e18.LessThan(req.GrossUsd1e18) {
		short := req.GrossUsd1e18.Sub(v.state.Cash1e18)
		got, err := v.core.Recall(ctx, units.New(short, units.Usd1e18))
		if err != nil {
			return decimal.Decimal{}, err
		}
		value, err := got.RawIn(units.Usd1e18)
		if err != nil {
			return decimal.Decimal{}, err
		}
		v.state.Cash1e18 = v.state.Cash1e18.Add(value)
		if v.state.Cash1e18.LessThan(req.GrossUsd1e18) {
			return decimal.Decimal{}, fmt.Errorf("recalled %s, still short of %s for withdraw %d", value, req.GrossUsd1e18, id)
		}
	}

	fee := req.GrossUsd1e18.Mul(decimal.NewFromInt(int64(req.FeeBpsSnapshot))).Shift(-4).Floor()
	net := req.GrossUsd1e18.Sub(fee)

	// The fee part of the obligation stays in the pool as cash.
	v.state.Cash1e18 = v.state.Cash1e18.Sub(net)
	v.state.Pending1e18 = v.state.Pending1e18.Sub(req.GrossUsd1e18)
	req.Settled = true
	req.SettleTime = time.Now()

	log.Printf("settled withdraw %d for %q: net %s fee %s", id, req.User, net, fee)
	v.emit(&WithdrawSettledEvent{stamp(), id, req.User, net, fee})
	return net, nil
}

// PendingWithdraws returns the unsettled queue in id order.
func (v *Vault) PendingWithdraws() []*gobs.WithdrawRequest {
	var reqs []*gobs.WithdrawRequest
	for id := uint64(0); id < v.state.NextWithdrawID; id++ {
		if req, ok := v.withdraws[id]; ok && !req.Settled {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

func (v *Vault) SetPaused(paused bool) {
	if v.cfg.Paused == paused {
		return
	}
	v.cfg.Paused = paused
	v.emit(&PauseEvent{stamp(), paused})
}

func (v *Vault) SetFees(depositBps, withdrawBps uint32, tiers []gobs.WithdrawFeeTier) error {
	cfg := v.cfg
	cfg.DepositFeeBps = depositBps
	cfg.WithdrawFeeBps = withdrawBps
	cfg.WithdrawFeeTiers = tiers
	if err := checkConfig(&cfg); err != nil {
		return err
	}
	v.cfg = cfg
	v.emit(&ConfigEvent{stamp(), "fees", fmt.Sprintf("deposit %d bps, withdraw %d bps, %d tiers", depositBps, withdrawBps, len(tiers))})
	return nil
}

func (v *Vault) SetAutoDeployBps(bps uint32) error {
	if bps > 10000 {
		return fmt.Errorf("auto-deploy %d bps is out of range", bps)
	}
	v.cfg.AutoDeployBps = bps
	v.emit(&ConfigEvent{stamp(), "auto-deploy-bps", fmt.Sprint(bps)})
	return nil
}

func (v *Vault) SetMinDeposit(min1e18 decimal.Decimal) error {
	if min1e18.IsNegative() {
		return fmt.Errorf("min deposit %s cannot be negative", min1e18)
	}
	v.cfg.MinDepositUsd1e18 = min1e18
	v.emit(&ConfigEvent{stamp(), "min-deposit", min1e18.String()})
	return nil
}
