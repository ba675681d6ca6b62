// Copyright (c) 2025 BVK Chaitanya

// Package handler implements the core interaction handler: it mirrors the
// venue-side positions of the vault's core account, values them through the
// oracle deviation guard, computes allocation deltas and turns them into
// quantized IOC orders, subject to the epoch notional limiter.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bvk/corevault/epoch"
	"github.com/bvk/corevault/gobs"
	"github.com/bvk/corevault/guard"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/idgen"
	"github.com/bvk/corevault/kvutil"
	"github.com/bvk/corevault/units"
	"github.com/bvkgo/kv"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

const (
	ConfigKey = "/handler/config"
	StateKey  = "/handler/state"
)

var (
	// ErrNoAccount is reported when the configured core account does not
	// exist on the venue. Capital must never be forwarded to a non-existent
	// account.
	ErrNoAccount = errors.New("core account does not exist")

	// ErrSlippage is reported when a dispatched order's realized size falls
	// below the caller's minimum.
	ErrSlippage = errors.New("order size below caller minimum")

	// ErrBadConfig wraps all configuration validation failures.
	ErrBadConfig = errors.New("invalid configuration")
)

type Handler struct {
	cfg gobs.HandlerConfig

	reader hlcore.Reader
	writer hlcore.Writer
	bridge hlcore.Bridge

	guards  []*guard.Guard
	limiter *epoch.Limiter
	idgen   *idgen.Generator

	events *topic.Topic[Event]
}

// Position is one risk asset's venue-side holding, as of the last
// successful balance read.
type Position struct {
	Asset string

	TokenID uint32

	// BalanceSz is the total balance in the asset's sz base.
	BalanceSz decimal.Decimal

	// AvailableSz excludes any held amount.
	AvailableSz decimal.Decimal

	// Px1e8 is the guard-accepted valuation price.
	Px1e8 decimal.Decimal

	UsdValue1e18 decimal.Decimal
}

func checkConfig(cfg *gobs.HandlerConfig) error {
	if len(cfg.CoreAccount) == 0 {
		return fmt.Errorf("core account cannot be empty: %w", ErrBadConfig)
	}
	if len(cfg.Assets) != 2 {
		return fmt.Errorf("handler needs exactly two risk assets, got %d: %w", len(cfg.Assets), ErrBadConfig)
	}
	for i := range cfg.Assets {
		a := &cfg.Assets[i]
		if len(a.Name) == 0 {
			return fmt.Errorf("asset %d name cannot be empty: %w", i, ErrBadConfig)
		}
		if a.PxDecimals < 0 || a.PxDecimals > 18 {
			return fmt.Errorf("asset %q pxDecimals %d is out of range: %w", a.Name, a.PxDecimals, ErrBadConfig)
		}
	}
	if cfg.ReserveBps > 10000 || cfg.DeadbandBps > 10000 || cfg.SlippageBps > 10000 {
		return fmt.Errorf("bps parameter out of range: %w", ErrBadConfig)
	}
	return nil
}

// New creates a handler over the given venue bindings. State carries the
// persisted guard references, epoch counters and client id offset; a nil
// state starts fresh.
func New(cfg *gobs.HandlerConfig, state *gobs.HandlerState, reader hlcore.Reader, writer hlcore.Writer, bridge hlcore.Bridge) (*Handler, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid handler config: %w", err)
	}
	if state == nil {
		state = &gobs.HandlerState{}
	}

	h := &Handler{
		cfg:     *cfg,
		reader:  reader,
		writer:  writer,
		bridge:  bridge,
		limiter: epoch.Restore(cfg.MaxNotionalPerEpoch1e18, cfg.EpochBlocks, state.EpochWindowStart, state.EpochNotionalSent1e18),
		idgen:   idgen.New(cfg.CoreAccount, state.ClientIDOffset),
		events:  topic.New[Event](),
	}
	for i := range cfg.Assets {
		last := state.LastPxMap[cfg.Assets[i].Name]
		h.guards = append(h.guards, guard.Restore(cfg.MaxDeviationBps, last))
	}
	return h, nil
}

func Load(ctx context.Context, r kv.Reader, reader hlcore.Reader, writer hlcore.Writer, bridge hlcore.Bridge) (*Handler, error) {
	cfg, err := kvutil.Get[gobs.HandlerConfig](ctx, r, ConfigKey)
	if err != nil {
		return nil, fmt.Errorf("could not load handler config: %w", err)
	}
	state, err := kvutil.Get[gobs.HandlerState](ctx, r, StateKey)
	if err != nil {
		return nil, fmt.Errorf("could not load handler state: %w", err)
	}
	return New(cfg, state, reader, writer, bridge)
}

func (h *Handler) Save(ctx context.Context, rw kv.ReadWriter) error {
	start, sent := h.limiter.Window()
	state := &gobs.HandlerState{
		LastPxMap:             make(map[string]decimal.Decimal),
		EpochWindowStart:      start,
		EpochNotionalSent1e18: sent,
		ClientIDOffset:        h.idgen.Offset(),
	}
	for i := range h.cfg.Assets {
		state.LastPxMap[h.cfg.Assets[i].Name] = h.guards[i].Last()
	}
	if err := kvutil.Set(ctx, rw, StateKey, state); err != nil {
		return fmt.Errorf("could not save handler state: %w", err)
	}
	return nil
}

func (h *Handler) SaveConfig(ctx context.Context, rw kv.ReadWriter) error {
	cfg := h.cfg
	if err := kvutil.Set(ctx, rw, ConfigKey, &cfg); err != nil {
		return fmt.Errorf("could not save handler config: %w", err)
	}
	return nil
}

func (h *Handler) Config() gobs.HandlerConfig {
	return h.cfg
}

// Events returns a receiver for the handler's observability events:
// per-order placements, guard skips, rate-limit rejections, rebalance
// completions and config changes.
func (h *Handler) Events() (*topic.Receiver[Event], error) {
	return topic.Subscribe(h.events, 16, false)
}

func (h *Handler) emit(ev Event) {
	h.events.Send(ev)
}

func stamp() eventStamp {
	return eventStamp{Time: time.Now()}
}

// SetGuardParams updates the deviation band width.
func (h *Handler) SetGuardParams(ctx context.Context, maxDeviationBps uint32) {
	h.cfg.MaxDeviationBps = maxDeviationBps
	for _, g := range h.guards {
		g.SetMaxDeviationBps(maxDeviationBps)
	}
	h.emit(&ConfigEvent{stamp(), "max-deviation-bps", fmt.Sprint(maxDeviationBps)})
}

// SetEpochParams updates the outbound notional cap.
func (h *Handler) SetEpochParams(ctx context.Context, maxNotional1e18 decimal.Decimal, windowBlocks uint64) {
	h.cfg.MaxNotionalPerEpoch1e18 = maxNotional1e18
	h.cfg.EpochBlocks = windowBlocks
	h.limiter.SetLimits(maxNotional1e18, windowBlocks)
	h.emit(&ConfigEvent{stamp(), "epoch-limits", fmt.Sprintf("%s/%d", maxNotional1e18, windowBlocks)})
}

// SetRebalanceParams updates the allocation parameters.
func (h *Handler) SetRebalanceParams(ctx context.Context, reserveBps, deadbandBps, slippageBps uint32) error {
	if reserveBps > 10000 || deadbandBps > 10000 || slippageBps > 10000 {
		return fmt.Errorf("bps parameter out of range")
	}
	h.cfg.ReserveBps = reserveBps
	h.cfg.DeadbandBps = deadbandBps
	h.cfg.SlippageBps = slippageBps
	h.emit(&ConfigEvent{stamp(), "rebalance-params", fmt.Sprintf("%d/%d/%d", reserveBps, deadbandBps, slippageBps)})
	return nil
}

// OraclePx returns the guard's current 1e8 reference price for an asset.
func (h *Handler) OraclePx(asset string) (decimal.Decimal, error) {
	for i := range h.cfg.Assets {
		if h.cfg.Assets[i].Name == asset {
			return h.guards[i].Last(), nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("unknown asset %q", asset)
}

// Deploy forwards settlement-asset capital to the core account and runs
// one allocation pass on the deposit path. Once the transfer lands the
// capital is counted in equity, so any allocation failure after that
// point skips order placement without failing the deposit; guard
// deviations and rate limits behave the same way.
func (h *Handler) Deploy(ctx context.Context, usd units.Quantity) error {
	value, err := usd.RawIn(units.Usd1e18)
	if err != nil {
		return err
	}
	if value.IsZero() {
		return nil
	}
	exists, err := h.reader.AccountExists(ctx, h.cfg.CoreAccount)
	if err != nil {
		return fmt.Errorf("could not check core account: %w", err)
	}
	if !exists {
		return fmt.Errorf("cannot deploy %s to %q: %w", value, h.cfg.CoreAccount, ErrNoAccount)
	}
	if err := h.bridge.TransferToCore(ctx, usd); err != nil {
		return fmt.Errorf("could not transfer %s to core: %w", value, err)
	}
	// The transfer cannot be rolled back; failing the deposit here would
	// leave bridged capital in equity with no shares minted against it. A
	// later rebalance pass places the orders instead.
	if _, err := h.rebalance(ctx, DepositPath, nil); err != nil {
		log.Printf("deposit allocation failed after transfer, orders skipped: %v", err)
	}
	return nil
}

// Recall pulls settlement-asset capital back from the venue. It returns
// the amount actually recalled, which may be short when the core balance
// is below the request.
func (h *Handler) Recall(ctx context.Context, usd units.Quantity) (units.Quantity, error) {
	got, err := h.bridge.RecallFromCore(ctx, usd)
	if err != nil {
		return units.Quantity{}, fmt.Errorf("could not recall from core: %w", err)
	}
	if v, _ := got.Cmp(usd); v < 0 {
		log.Printf("recall returned %s of requested %s (core balance short)", got, usd)
	}
	return got, nil
}
