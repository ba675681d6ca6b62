// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/vault"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/cli"
)

func TestTelegramStatusCommand(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	s := newTestServer(t, nil, db, sim)

	if _, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)}); err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	if err := s.statusTelegramCmd(cli.WithStdout(ctx, &sb), nil); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.Contains(out, "NAV: 1000.00") {
		t.Fatalf("unexpected status output %q", out)
	}
	if !strings.Contains(out, "BTC:") || !strings.Contains(out, "HYPE:") {
		t.Fatalf("positions missing from status output %q", out)
	}
}

func TestTelegramPauseResumeCommands(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	s := newTestServer(t, nil, db, sim)

	var sb strings.Builder
	if err := s.pauseTelegramCmd(cli.WithStdout(ctx, &sb), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "paused=true") {
		t.Fatalf("unexpected pause output %q", sb.String())
	}
	_, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)})
	if !errors.Is(err, vault.ErrPaused) {
		t.Fatalf("want ErrPaused, got %v", err)
	}

	// The pause must survive a restart off the same database.
	s2 := newTestServer(t, nil, db, sim)
	vs, err := s2.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !vs.Paused {
		t.Fatalf("pause did not persist")
	}

	sb.Reset()
	if err := s2.resumeTelegramCmd(cli.WithStdout(ctx, &sb), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s2.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)}); err != nil {
		t.Fatal(err)
	}
}

func TestTelegramWithdrawalsCommand(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()
	seedTestDB(t, db)
	sim := newTestSim()
	s := newTestServer(t, nil, db, sim)

	var sb strings.Builder
	if err := s.withdrawalsTelegramCmd(cli.WithStdout(ctx, &sb), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "no unsettled withdrawals") {
		t.Fatalf("unexpected empty-queue output %q", sb.String())
	}

	if _, err := s.doDeposit(ctx, &api.DepositRequest{User: "alice", Amount1e18: usd1e18(1000)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.doWithdraw(ctx, &api.WithdrawRequest{User: "alice", Shares: usd1e18(400)}); err != nil {
		t.Fatal(err)
	}

	sb.Reset()
	if err := s.withdrawalsTelegramCmd(cli.WithStdout(ctx, &sb), nil); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.Contains(out, "alice") || !strings.Contains(out, "fee 50 bps") {
		t.Fatalf("unexpected queue output %q", out)
	}
	if !strings.Contains(out, "400.00") {
		t.Fatalf("gross amount missing from queue output %q", out)
	}
}
