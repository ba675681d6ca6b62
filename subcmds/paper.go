// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bvk/corevault/coresim"
	"github.com/bvk/corevault/gobs"
	"github.com/bvk/corevault/handler"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/kvutil"
	"github.com/bvk/corevault/server"
	"github.com/bvk/corevault/units"
	"github.com/bvk/corevault/vault"
	"github.com/bvkgo/kv"
	"github.com/shopspring/decimal"
)

// paperToken describes one simulated token and its fixed-point bases.
type paperToken struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	WeiDecimals int32  `json:"weiDecimals"`
}

// paperMarket describes one simulated spot market with its initial oracle
// price and top of book, all in the market's raw price base.
type paperMarket struct {
	ID         uint32          `json:"id"`
	Base       uint32          `json:"base"`
	Quote      uint32          `json:"quote"`
	PxDecimals int32           `json:"pxDecimals"`
	SpotPx     decimal.Decimal `json:"spotPx"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
}

type paperAsset struct {
	Name     string `json:"name"`
	TokenID  uint32 `json:"tokenId"`
	MarketID uint32 `json:"marketId"`
}

// paperFile is the schema of the "paper.json" file in the data directory.
// It describes the simulated venue and, for the first run only, the
// initial vault and handler parameters written into the database.
type paperFile struct {
	Account   string `json:"account"`
	USDCToken uint32 `json:"usdcToken"`

	Tokens  []paperToken `json:"tokens"`
	Markets []paperMarket `json:"markets"`

	// Balances are initial account balances in the wei base, keyed by
	// token name.
	Balances map[string]decimal.Decimal `json:"balances"`

	FillDelayBlocks uint64 `json:"fillDelayBlocks"`

	Assets []paperAsset `json:"assets"`

	ReserveBps              uint32          `json:"reserveBps"`
	DeadbandBps             uint32          `json:"deadbandBps"`
	SlippageBps             uint32          `json:"slippageBps"`
	MaxDeviationBps         uint32          `json:"maxDeviationBps"`
	MaxNotionalPerEpoch1e18 decimal.Decimal `json:"maxNotionalPerEpoch1e18"`
	EpochBlocks             uint64          `json:"epochBlocks"`
	MinOrderNotional1e18    decimal.Decimal `json:"minOrderNotional1e18"`

	DepositFeeBps     uint32          `json:"depositFeeBps"`
	WithdrawFeeBps    uint32          `json:"withdrawFeeBps"`
	AutoDeployBps     uint32          `json:"autoDeployBps"`
	MinDepositUsd1e18 decimal.Decimal `json:"minDepositUsd1e18"`
}

func (f *paperFile) Check() error {
	if len(f.Account) == 0 {
		return fmt.Errorf("account name cannot be empty")
	}
	if len(f.Tokens) == 0 || len(f.Markets) == 0 {
		return fmt.Errorf("tokens and markets cannot be empty")
	}
	if len(f.Assets) == 0 {
		return fmt.Errorf("assets cannot be empty")
	}
	return nil
}

func (f *paperFile) tokenByID(id uint32) (*paperToken, bool) {
	for i := range f.Tokens {
		if f.Tokens[i].ID == id {
			return &f.Tokens[i], true
		}
	}
	return nil, false
}

func (f *paperFile) marketByID(id uint32) (*paperMarket, bool) {
	for i := range f.Markets {
		if f.Markets[i].ID == id {
			return &f.Markets[i], true
		}
	}
	return nil, false
}

// preparePaperVenue builds the in-memory venue from the paper file and, on
// the first run, writes the initial vault and handler records into the
// database.
func preparePaperVenue(ctx context.Context, db kv.Database, fpath string) (*server.Venue, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("could not read paper venue file %q: %w", fpath, err)
	}
	pf := new(paperFile)
	if err := json.Unmarshal(data, pf); err != nil {
		return nil, fmt.Errorf("could not parse paper venue file %q: %w", fpath, err)
	}
	if err := pf.Check(); err != nil {
		return nil, fmt.Errorf("invalid paper venue file %q: %w", fpath, err)
	}

	sim := coresim.New(&coresim.Options{
		Actor:           pf.Account,
		USDCToken:       pf.USDCToken,
		FillDelayBlocks: pf.FillDelayBlocks,
	})
	for _, t := range pf.Tokens {
		sim.AddToken(t.ID, &hlcore.TokenInfo{
			Name: t.Name,
			Decimals: units.TokenDecimalProfile{
				SzDecimals:  t.SzDecimals,
				WeiDecimals: t.WeiDecimals,
			},
		})
	}
	for _, m := range pf.Markets {
		sim.AddMarket(m.ID, m.Base, m.Quote, m.PxDecimals)
		if !m.SpotPx.IsZero() {
			sim.SetSpotPx(m.ID, m.SpotPx)
		}
		if !m.Bid.IsZero() && !m.Ask.IsZero() {
			sim.SetBBO(m.ID, m.Bid, m.Ask)
		}
	}
	sim.CreateAccount(pf.Account)
	for name, amount := range pf.Balances {
		var token *paperToken
		for i := range pf.Tokens {
			if pf.Tokens[i].Name == name {
				token = &pf.Tokens[i]
			}
		}
		if token == nil {
			return nil, fmt.Errorf("balance entry %q has no matching token", name)
		}
		sim.Credit(pf.Account, token.ID, amount)
	}
	sim.AdvanceBlocks(1)

	if err := kv.WithReadWriter(ctx, db, pf.seed); err != nil {
		return nil, fmt.Errorf("could not seed initial records: %w", err)
	}
	return &server.Venue{Reader: sim, Writer: sim, Bridge: sim}, nil
}

// seed writes the initial vault and handler records unless they already
// exist in the database.
func (f *paperFile) seed(ctx context.Context, rw kv.ReadWriter) error {
	if _, err := kvutil.Get[gobs.HandlerConfig](ctx, rw, handler.ConfigKey); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	hcfg := &gobs.HandlerConfig{
		CoreAccount:             f.Account,
		USDCTokenID:             f.USDCToken,
		ReserveBps:              f.ReserveBps,
		DeadbandBps:             f.DeadbandBps,
		SlippageBps:             f.SlippageBps,
		MaxDeviationBps:         f.MaxDeviationBps,
		MaxNotionalPerEpoch1e18: f.MaxNotionalPerEpoch1e18,
		EpochBlocks:             f.EpochBlocks,
		MinOrderNotional1e18:    f.MinOrderNotional1e18,
	}
	for _, a := range f.Assets {
		if _, ok := f.tokenByID(a.TokenID); !ok {
			return fmt.Errorf("asset %q has no matching token %d", a.Name, a.TokenID)
		}
		m, ok := f.marketByID(a.MarketID)
		if !ok {
			return fmt.Errorf("asset %q has no matching market %d", a.Name, a.MarketID)
		}
		hcfg.Assets = append(hcfg.Assets, gobs.AssetConfig{
			Name:       a.Name,
			TokenID:    a.TokenID,
			MarketID:   a.MarketID,
			PxDecimals: m.PxDecimals,
		})
	}
	if err := kvutil.Set(ctx, rw, handler.ConfigKey, hcfg); err != nil {
		return err
	}
	if err := kvutil.Set(ctx, rw, handler.StateKey, &gobs.HandlerState{}); err != nil {
		return err
	}

	vcfg := &gobs.VaultConfig{
		DepositFeeBps:     f.DepositFeeBps,
		WithdrawFeeBps:    f.WithdrawFeeBps,
		AutoDeployBps:     f.AutoDeployBps,
		MinDepositUsd1e18: f.MinDepositUsd1e18,
	}
	if err := kvutil.Set(ctx, rw, vault.ConfigKey, vcfg); err != nil {
		return err
	}
	return kvutil.Set(ctx, rw, vault.StateKey, &gobs.VaultState{})
}
