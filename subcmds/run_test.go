// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bvk/corevault/coresim"
	"github.com/bvk/corevault/gobs"
	"github.com/bvk/corevault/handler"
	"github.com/bvk/corevault/hlrpc"
	"github.com/bvk/corevault/kvutil"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
)

func TestPrepareVenueLive(t *testing.T) {
	c := &Run{restURL: "http://localhost:3001", maxRequestsPerSec: 10}
	venue, err := c.prepareVenue(context.Background(), kvmemdb.New(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := venue.Reader.(*hlrpc.Client); !ok {
		t.Fatalf("want live venue reader, got %T", venue.Reader)
	}
	if _, ok := venue.Writer.(*hlrpc.Client); !ok {
		t.Fatalf("want live venue writer, got %T", venue.Writer)
	}
	if _, ok := venue.Bridge.(*hlrpc.Client); !ok {
		t.Fatalf("want live venue bridge, got %T", venue.Bridge)
	}
}

const testPaperFile = `{
  "account": "vault",
  "usdcToken": 0,
  "tokens": [
    {"id": 0, "name": "USDC", "szDecimals": 6, "weiDecimals": 6},
    {"id": 1, "name": "BTC", "szDecimals": 5, "weiDecimals": 8},
    {"id": 2, "name": "HYPE", "szDecimals": 2, "weiDecimals": 8}
  ],
  "markets": [
    {"id": 100, "base": 1, "quote": 0, "pxDecimals": 2, "spotPx": "5000000", "bid": "4999900", "ask": "5000000"},
    {"id": 101, "base": 2, "quote": 0, "pxDecimals": 4, "spotPx": "250000", "bid": "249900", "ask": "250000"}
  ],
  "assets": [
    {"name": "BTC", "tokenId": 1, "marketId": 100},
    {"name": "HYPE", "tokenId": 2, "marketId": 101}
  ],
  "maxDeviationBps": 500
}`

func TestPrepareVenuePaper(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	fpath := filepath.Join(dataDir, "paper.json")
	if err := os.WriteFile(fpath, []byte(testPaperFile), 0600); err != nil {
		t.Fatal(err)
	}
	db := kvmemdb.New()

	c := &Run{}
	venue, err := c.prepareVenue(ctx, db, dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := venue.Reader.(*coresim.Sim); !ok {
		t.Fatalf("want paper venue, got %T", venue.Reader)
	}

	// The first run must seed the handler and vault records.
	read := func(ctx context.Context, r kv.Reader) error {
		cfg, err := kvutil.Get[gobs.HandlerConfig](ctx, r, handler.ConfigKey)
		if err != nil {
			return err
		}
		if cfg.CoreAccount != "vault" || len(cfg.Assets) != 2 {
			t.Fatalf("bad seeded handler config %+v", cfg)
		}
		return nil
	}
	if err := kv.WithReader(ctx, db, read); err != nil {
		t.Fatal(err)
	}
}
