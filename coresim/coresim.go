// Copyright (c) 2025 BVK Chaitanya

// Package coresim is an in-memory rendition of the execution venue, used by
// tests and by the daemon's paper mode. It honors the venue's asynchronous
// settlement: a dispatched IOC order changes balances only after the
// configured number of blocks has elapsed, so fills become visible to the
// engine only through balance reads on a later call.
package coresim

import (
	"context"
	"fmt"
	"sync"

	"github.com/bvk/corevault/coreact"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/px"
	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
)

type Options struct {
	// Actor is the core account on whose behalf dispatched actions execute.
	Actor string

	// USDCToken is the settlement asset's token id.
	USDCToken uint32

	// FillDelayBlocks is the number of blocks between an order's dispatch
	// and its fill becoming visible in balances.
	FillDelayBlocks uint64
}

func (v *Options) setDefaults() {
	if v.FillDelayBlocks == 0 {
		v.FillDelayBlocks = 1
	}
}

type market struct {
	base, quote uint32
	pxDecimals  int32

	spotRaw decimal.Decimal
	bidRaw  decimal.Decimal
	askRaw  decimal.Decimal
}

type pendingFill struct {
	applyHeight uint64
	owner       string
	market      uint32
	isBuy       bool
	fillPxRaw   decimal.Decimal
	sizeSz      decimal.Decimal
}

type Sim struct {
	mu sync.Mutex

	opts Options

	height   uint64
	tokens   map[uint32]*hlcore.TokenInfo
	markets  map[uint32]*market
	accounts map[string]bool
	balances map[string]map[uint32]decimal.Decimal // wei base

	pending []*pendingFill

	// Orders observed by SendAction, newest last. Tests inspect these.
	sent []*coreact.LimitOrder
}

var (
	_ hlcore.Reader = &Sim{}
	_ hlcore.Writer = &Sim{}
	_ hlcore.Bridge = &Sim{}
)

func New(opts *Options) *Sim {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	return &Sim{
		opts:     *opts,
		tokens:   make(map[uint32]*hlcore.TokenInfo),
		markets:  make(map[uint32]*market),
		accounts: make(map[string]bool),
		balances: make(map[string]map[uint32]decimal.Decimal),
	}
}

func (s *Sim) AddToken(id uint32, info *hlcore.TokenInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[id] = info
}

func (s *Sim) AddMarket(id uint32, base, quote uint32, pxDecimals int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[id] = &market{base: base, quote: quote, pxDecimals: pxDecimals}
}

func (s *Sim) CreateAccount(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[owner] = true
	if _, ok := s.balances[owner]; !ok {
		s.balances[owner] = make(map[uint32]decimal.Decimal)
	}
}

// Credit adds a wei-base amount to an account's token balance.
func (s *Sim) Credit(owner string, token uint32, amountWei decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(owner, token, amountWei)
}

func (s *Sim) credit(owner string, token uint32, amountWei decimal.Decimal) {
	if _, ok := s.balances[owner]; !ok {
		s.balances[owner] = make(map[uint32]decimal.Decimal)
	}
	s.balances[owner][token] = s.balances[owner][token].Add(amountWei)
}

func (s *Sim) SetSpotPx(marketID uint32, raw decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.markets[marketID]; ok {
		m.spotRaw = raw
	}
}

func (s *Sim) SetBBO(marketID uint32, bidRaw, askRaw decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.markets[marketID]; ok {
		m.bidRaw, m.askRaw = bidRaw, askRaw
	}
}

// AdvanceBlocks moves the chain forward and applies any fills that have
// become due.
func (s *Sim) AdvanceBlocks(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height += n

	var left []*pendingFill
	for _, f := range s.pending {
		if f.applyHeight > s.height {
			left = append(left, f)
			continue
		}
		s.applyFill(f)
	}
	s.pending = left
}

// SentOrders returns all orders accepted by SendAction so far.
func (s *Sim) SentOrders() []*coreact.LimitOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*coreact.LimitOrder, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *Sim) applyFill(f *pendingFill) {
	m := s.markets[f.market]
	base := s.tokens[m.base]
	quote := s.tokens[m.quote]

	baseWei, err := units.SzToWei(units.New(f.sizeSz, units.Sz), &base.Decimals)
	if err != nil {
		return
	}
	usd, err := units.USDValue(units.New(f.sizeSz, units.Sz),
		px.ToPx1e8(f.fillPxRaw, m.pxDecimals), &base.Decimals)
	if err != nil {
		return
	}
	quoteWei := usd.Raw().Shift(quote.Decimals.WeiDecimals - 18).Floor()

	if f.isBuy {
		s.credit(f.owner, m.base, baseWei.Raw())
		s.credit(f.owner, m.quote, quoteWei.Neg())
	} else {
		s.credit(f.owner, m.base, baseWei.Raw().Neg())
		s.credit(f.owner, m.quote, quoteWei)
	}
}

// Reader

func (s *Sim) BlockHeight(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, nil
}

func (s *Sim) AccountExists(ctx context.Context, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[owner], nil
}

func (s *Sim) SpotBalance(ctx context.Context, owner string, token uint32) (*hlcore.SpotBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token]; !ok {
		return nil, fmt.Errorf("unknown token %d", token)
	}
	return &hlcore.SpotBalance{Total: s.balances[owner][token]}, nil
}

func (s *Sim) TokenInfo(ctx context.Context, token uint32) (*hlcore.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("unknown token %d", token)
	}
	return info, nil
}

func (s *Sim) SpotPx(ctx context.Context, marketID uint32) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("unknown market %d", marketID)
	}
	return m.spotRaw, nil
}

func (s *Sim) BBO(ctx context.Context, asset uint32) (*hlcore.BBO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[asset-coreact.SpotMarketOffset]
	if !ok {
		return nil, fmt.Errorf("unknown order-book asset %d", asset)
	}
	return &hlcore.BBO{Bid: m.bidRaw, Ask: m.askRaw}, nil
}

// Writer

// SendAction decodes and executes an encoded limit order action. IOC
// semantics: a crossing order fills at the touch, a non-crossing order is
// discarded. Either way the call returns immediately with no
// acknowledgement, and a fill changes balances only FillDelayBlocks later.
func (s *Sim) SendAction(ctx context.Context, action []byte) error {
	order, err := coreact.DecodeLimitOrder(action)
	if err != nil {
		return fmt.Errorf("could not decode action: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	marketID := order.Asset - coreact.SpotMarketOffset
	m, ok := s.markets[marketID]
	if !ok {
		return fmt.Errorf("unknown order-book asset %d", order.Asset)
	}
	s.sent = append(s.sent, order)

	limit := decimal.NewFromInt(int64(order.LimitPxRaw))
	var fillPx decimal.Decimal
	if order.IsBuy {
		if m.askRaw.IsZero() || limit.LessThan(m.askRaw) {
			return nil // no cross; IOC discards
		}
		fillPx = m.askRaw
	} else {
		if m.bidRaw.IsZero() || limit.GreaterThan(m.bidRaw) {
			return nil
		}
		fillPx = m.bidRaw
	}

	s.pending = append(s.pending, &pendingFill{
		applyHeight: s.height + s.opts.FillDelayBlocks,
		owner:       s.opts.Actor,
		market:      marketID,
		isBuy:       order.IsBuy,
		fillPxRaw:   fillPx,
		sizeSz:      decimal.NewFromInt(int64(order.SizeSz)),
	})
	return nil
}

// Bridge

func (s *Sim) TransferToCore(ctx context.Context, usd units.Quantity) error {
	value, err := usd.RawIn(units.Usd1e18)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.tokens[s.opts.USDCToken]
	if !ok {
		return fmt.Errorf("unknown settlement token %d", s.opts.USDCToken)
	}
	s.credit(s.opts.Actor, s.opts.USDCToken, value.Shift(quote.Decimals.WeiDecimals-18).Floor())
	return nil
}

func (s *Sim) RecallFromCore(ctx context.Context, usd units.Quantity) (units.Quantity, error) {
	value, err := usd.RawIn(units.Usd1e18)
	if err != nil {
		return units.Quantity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.tokens[s.opts.USDCToken]
	if !ok {
		return units.Quantity{}, fmt.Errorf("unknown settlement token %d", s.opts.USDCToken)
	}
	want := value.Shift(quote.Decimals.WeiDecimals - 18).Floor()
	have := s.balances[s.opts.Actor][s.opts.USDCToken]
	got := decimal.Min(want, have)
	s.credit(s.opts.Actor, s.opts.USDCToken, got.Neg())
	return units.New(got.Shift(18-quote.Decimals.WeiDecimals), units.Usd1e18), nil
}
