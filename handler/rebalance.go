// Copyright (c) 2025 BVK Chaitanya

package handler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bvk/corevault/coreact"
	"github.com/bvk/corevault/epoch"
	"github.com/bvk/corevault/guard"
	"github.com/bvk/corevault/px"
	"github.com/bvk/corevault/rebal"
	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

// Status is the handler's externally visible view of one evaluation.
type Status struct {
	Height uint64

	Equity1e18 decimal.Decimal

	Positions []Position

	// Deltas1e18 are the post-deadband USD deltas per asset. Present only
	// on rebalance results, not on plain status reads.
	Deltas1e18 map[string]decimal.Decimal

	OrdersPlaced int
}

type assetView struct {
	cfg     int // index into h.cfg.Assets
	profile units.TokenDecimalProfile

	balanceSz   units.Quantity
	availableSz units.Quantity

	rawPx1e8 units.Quantity
	result   guard.Result

	usd units.Quantity
}

type snapshot struct {
	height uint64

	assets []assetView

	// usdc is the settlement-asset balance valued in 1e18 USD.
	usdc units.Quantity

	equity units.Quantity
}

// snapshot reads all venue state the engine needs within one call. Every
// value is "as of this read": an order dispatched earlier may or may not
// be reflected yet, and the engine never assumes it is. When commit is
// true the guards advance their reference prices; views pass false.
func (h *Handler) snapshot(ctx context.Context, commit bool) (*snapshot, error) {
	exists, err := h.reader.AccountExists(ctx, h.cfg.CoreAccount)
	if err != nil {
		return nil, fmt.Errorf("could not check core account: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("account %q: %w", h.cfg.CoreAccount, ErrNoAccount)
	}

	height, err := h.reader.BlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read block height: %w", err)
	}
	snap := &snapshot{height: height}

	usdcInfo, err := h.reader.TokenInfo(ctx, h.cfg.USDCTokenID)
	if err != nil {
		return nil, fmt.Errorf("could not read settlement token info: %w", err)
	}
	usdcBal, err := h.reader.SpotBalance(ctx, h.cfg.CoreAccount, h.cfg.USDCTokenID)
	if err != nil {
		return nil, fmt.Errorf("could not read settlement balance: %w", err)
	}
	snap.usdc = units.New(usdcBal.Total.Shift(18-usdcInfo.Decimals.WeiDecimals).Floor(), units.Usd1e18)

	equity := snap.usdc
	for i := range h.cfg.Assets {
		acfg := &h.cfg.Assets[i]

		info, err := h.reader.TokenInfo(ctx, acfg.TokenID)
		if err != nil {
			return nil, fmt.Errorf("could not read token info for %q: %w", acfg.Name, err)
		}
		if err := info.Decimals.Check(); err != nil {
			return nil, fmt.Errorf("bad decimals for %q: %w", acfg.Name, err)
		}

		bal, err := h.reader.SpotBalance(ctx, h.cfg.CoreAccount, acfg.TokenID)
		if err != nil {
			return nil, fmt.Errorf("could not read balance for %q: %w", acfg.Name, err)
		}
		balanceSz, err := units.WeiToSz(units.New(bal.Total, units.Wei), &info.Decimals)
		if err != nil {
			return nil, err
		}
		availableSz, err := units.WeiToSz(bal.Available(), &info.Decimals)
		if err != nil {
			return nil, err
		}

		raw, err := h.reader.SpotPx(ctx, acfg.MarketID)
		if err != nil {
			return nil, fmt.Errorf("could not read spot price for %q: %w", acfg.Name, err)
		}
		price := px.ToPx1e8(raw, acfg.PxDecimals)

		var result guard.Result
		if commit {
			result, err = h.guards[i].Evaluate(price)
		} else {
			result, err = h.guards[i].Peek(price)
		}
		if err != nil {
			return nil, fmt.Errorf("could not evaluate oracle price for %q: %w", acfg.Name, err)
		}

		// Positions are valued at the guard-accepted price, never at a raw
		// deviated read.
		usd, err := units.USDValue(balanceSz, result.Px, &info.Decimals)
		if err != nil {
			return nil, err
		}

		snap.assets = append(snap.assets, assetView{
			cfg:         i,
			profile:     info.Decimals,
			balanceSz:   balanceSz,
			availableSz: availableSz,
			rawPx1e8:    price,
			result:      result,
			usd:         usd,
		})
		if equity, err = equity.Add(usd); err != nil {
			return nil, err
		}
	}
	snap.equity = equity
	return snap, nil
}

// Equity returns the venue-side equity in 1e18 USD: settlement-asset cash
// plus each position valued at its band-clamped oracle price. The view
// never advances the guard references.
func (h *Handler) Equity(ctx context.Context) (units.Quantity, error) {
	snap, err := h.snapshot(ctx, false)
	if err != nil {
		return units.Quantity{}, err
	}
	return snap.equity, nil
}

// Status returns the handler's current positions and equity without
// placing orders or advancing guard state.
func (h *Handler) Status(ctx context.Context) (*Status, error) {
	snap, err := h.snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	return h.status(snap), nil
}

func (h *Handler) status(snap *snapshot) *Status {
	st := &Status{
		Height:     snap.height,
		Equity1e18: snap.equity.Raw(),
	}
	for _, av := range snap.assets {
		acfg := &h.cfg.Assets[av.cfg]
		st.Positions = append(st.Positions, Position{
			Asset:        acfg.Name,
			TokenID:      acfg.TokenID,
			BalanceSz:    av.balanceSz.Raw(),
			AvailableSz:  av.availableSz.Raw(),
			Px1e8:        av.result.Px.Raw(),
			UsdValue1e18: av.usd.Raw(),
		})
	}
	return st
}

// Rebalance runs one allocation pass toward target weights. minOuts, when
// non-empty, carries the caller's minimum acceptable order size per asset
// in sz units; a dispatched order sized below its minimum fails the call
// with ErrSlippage before anything is sent.
func (h *Handler) Rebalance(ctx context.Context, minOuts []decimal.Decimal) (*Status, error) {
	return h.rebalance(ctx, RebalancePath, minOuts)
}

func (h *Handler) rebalance(ctx context.Context, path Path, minOuts []decimal.Decimal) (*Status, error) {
	if len(minOuts) != 0 && len(minOuts) != len(h.cfg.Assets) {
		return nil, fmt.Errorf("want %d min-out values, got %d", len(h.cfg.Assets), len(minOuts))
	}

	snap, err := h.snapshot(ctx, true)
	if err != nil {
		return nil, err
	}

	positions := make([]units.Quantity, 0, len(snap.assets))
	for _, av := range snap.assets {
		positions = append(positions, av.usd)
	}
	deltas, err := rebal.Deltas(snap.equity, h.cfg.ReserveBps, h.cfg.DeadbandBps, positions)
	if err != nil {
		return nil, err
	}

	st := h.status(snap)
	st.Deltas1e18 = make(map[string]decimal.Decimal)

	for i, av := range snap.assets {
		acfg := &h.cfg.Assets[av.cfg]
		delta := deltas[i].Raw()
		st.Deltas1e18[acfg.Name] = delta

		if !av.result.IsTrusted() {
			log.Printf("%s: oracle price deviated on %s path, orders skipped (raw %s, clamped %s)",
				acfg.Name, path, av.rawPx1e8.Raw(), av.result.Px.Raw())
			h.emit(&GuardSkipEvent{stamp(), acfg.Name, path, av.rawPx1e8.Raw(), av.result.Px.Raw()})
			continue
		}
		if delta.IsZero() {
			continue
		}

		side := px.Buy
		if delta.IsNegative() {
			side = px.Sell
		}

		placed, err := h.placeOrder(ctx, snap, i, side, delta.Abs(), path, minOuts)
		if err != nil {
			return nil, err
		}
		if placed {
			st.OrdersPlaced++
		}
	}

	h.emit(&RebalanceEvent{stamp(), path, st.Equity1e18, st.Deltas1e18, st.OrdersPlaced})
	return st, nil
}

func (h *Handler) placeOrder(ctx context.Context, snap *snapshot, i int, side px.Side, deltaUsd decimal.Decimal, path Path, minOuts []decimal.Decimal) (bool, error) {
	av := &snap.assets[i]
	acfg := &h.cfg.Assets[av.cfg]

	bbo, err := h.reader.BBO(ctx, acfg.MarketID+coreact.SpotMarketOffset)
	if err != nil {
		return false, fmt.Errorf("could not read bbo for %q: %w", acfg.Name, err)
	}
	limitPx, err := rebal.LimitPx(bbo.Bid, bbo.Ask, acfg.PxDecimals, av.profile.SzDecimals, side, h.cfg.SlippageBps)
	if err != nil {
		return false, fmt.Errorf("could not derive limit price for %q: %w", acfg.Name, err)
	}

	size, err := px.SizeFromUSD(units.New(deltaUsd, units.Usd1e18), limitPx, av.profile.SzDecimals)
	if err != nil {
		return false, err
	}
	if side == px.Sell {
		if size, err = rebal.ClampSellSize(size, av.availableSz); err != nil {
			return false, err
		}
	}
	if size.IsZero() {
		return false, nil
	}
	if len(minOuts) != 0 && size.Raw().LessThan(minOuts[i]) {
		return false, fmt.Errorf("%s order size %s below minimum %s: %w",
			acfg.Name, size.Raw(), minOuts[i], ErrSlippage)
	}

	notional, err := units.USDValue(size, limitPx, &av.profile)
	if err != nil {
		return false, err
	}
	if !h.cfg.MinOrderNotional1e18.IsZero() && notional.Raw().LessThan(h.cfg.MinOrderNotional1e18) {
		log.Printf("%s: order notional %s below minimum %s, skipped",
			acfg.Name, notional.Raw(), h.cfg.MinOrderNotional1e18)
		return false, nil
	}

	if err := h.limiter.Allow(snap.height, notional); err != nil {
		start, sent := h.limiter.Window()
		h.emit(&RateLimitEvent{stamp(), acfg.Name, path, notional.Raw(), start, sent})
		if errors.Is(err, epoch.ErrRateLimited) && path == DepositPath {
			// Deposit accounting must complete; the allocation catches up on
			// a later rebalance.
			log.Printf("%s: %v (deposit path, order skipped)", acfg.Name, err)
			return false, nil
		}
		return false, err
	}

	rawPx, err := px.ToRawPx(limitPx, acfg.PxDecimals)
	if err != nil {
		return false, err
	}
	order := &coreact.LimitOrder{
		Asset:         acfg.MarketID + coreact.SpotMarketOffset,
		IsBuy:         side == px.Buy,
		LimitPxRaw:    uint64(rawPx.IntPart()),
		SizeSz:        uint64(size.Raw().IntPart()),
		Tif:           coreact.TifIOC,
		ClientOrderID: h.idgen.NextID(),
	}
	data, err := coreact.EncodeLimitOrder(order)
	if err != nil {
		h.idgen.RevertID()
		return false, err
	}
	if err := h.writer.SendAction(ctx, data); err != nil {
		h.idgen.RevertID()
		return false, fmt.Errorf("could not dispatch %s order for %q: %w", side, acfg.Name, err)
	}

	log.Printf("%s: dispatched %s ioc order size %s at limit %s (notional %s)",
		acfg.Name, side, size.Raw(), limitPx.Raw(), notional.Raw())
	h.emit(&OrderEvent{stamp(), acfg.Name, string(side), order.ClientOrderID,
		limitPx.Raw(), size.Raw(), notional.Raw()})
	return true, nil
}
