// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/telegram"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
)

func (s *Server) AddTelegramCommand(ctx context.Context, name, purpose string, handler telegram.CmdFunc) error {
	if s.telegramClient != nil {
		return s.telegramClient.AddCommand(ctx, name, purpose, handler)
	}
	return nil // Ignored
}

// registerTelegramCommands exposes vault operations to the authorized
// chat users. Message senders are already restricted to the configured
// owner ids by the telegram client.
func (s *Server) registerTelegramCommands(ctx context.Context) error {
	cmds := []struct {
		name, purpose string
		handler       telegram.CmdFunc
	}{
		{"status", "Prints vault NAV, price per share and positions", s.statusTelegramCmd},
		{"pause", "Pauses vault deposits and withdrawals", s.pauseTelegramCmd},
		{"resume", "Resumes vault deposits and withdrawals", s.resumeTelegramCmd},
		{"withdrawals", "Lists unsettled withdrawal requests", s.withdrawalsTelegramCmd},
	}
	for _, c := range cmds {
		if err := s.AddTelegramCommand(ctx, c.name, c.purpose, c.handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) statusTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)
	vs, err := s.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		return err
	}
	hs, err := s.doHandlerStatus(ctx, &api.HandlerStatusRequest{})
	if err != nil {
		return err
	}
	usd := func(v decimal.Decimal) string {
		return v.Shift(-18).StringFixed(2)
	}
	fmt.Fprintf(stdout, "NAV: %s\n", usd(vs.NAV1e18))
	fmt.Fprintf(stdout, "PPS: %s\n", vs.PPS1e18.Shift(-18).StringFixed(6))
	fmt.Fprintf(stdout, "Shares: %s\n", vs.TotalShares.Shift(-18).StringFixed(2))
	fmt.Fprintf(stdout, "Cash: %s Pending: %s\n", usd(vs.Cash1e18), usd(vs.Pending1e18))
	if vs.Paused {
		fmt.Fprintf(stdout, "Deposits: PAUSED\n")
	}
	for _, p := range hs.Positions {
		fmt.Fprintf(stdout, "%s: %s @ %s = %s\n",
			p.Asset, p.BalanceSz, p.Px1e8.Shift(-8).StringFixed(2), usd(p.UsdValue1e18))
	}
	return nil
}

func (s *Server) pauseTelegramCmd(ctx context.Context, args []string) error {
	return s.setPausedTelegramCmd(ctx, true)
}

func (s *Server) resumeTelegramCmd(ctx context.Context, args []string) error {
	return s.setPausedTelegramCmd(ctx, false)
}

func (s *Server) setPausedTelegramCmd(ctx context.Context, paused bool) error {
	stdout := cli.Stdout(ctx)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.vault.SetPaused(paused)
	if err := s.saveAll(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "paused=%v\n", paused)
	return nil
}

func (s *Server) withdrawalsTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)
	vs, err := s.doVaultStatus(ctx, &api.VaultStatusRequest{})
	if err != nil {
		return err
	}
	if len(vs.PendingWithdraws) == 0 {
		fmt.Fprintln(stdout, "no unsettled withdrawals")
		return nil
	}
	for _, w := range vs.PendingWithdraws {
		age := time.Since(w.CreateTime).Truncate(time.Second)
		fmt.Fprintf(stdout, "%d: %s gross %s fee %d bps age %s\n",
			w.ID, w.User, w.Gross1e18.Shift(-18).StringFixed(2), w.FeeBps, age)
	}
	return nil
}
