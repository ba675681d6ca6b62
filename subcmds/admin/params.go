// Copyright (c) 2025 BVK Chaitanya

package admin

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type SetGuard struct {
	cmdutil.ClientFlags
	KeyFlags

	maxDeviationBps uint
}

func (c *SetGuard) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-guard", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.UintVar(&c.maxDeviationBps, "max-deviation-bps", 0, "oracle deviation band half-width in basis points (0 disables)")
	return fset, cli.CmdFunc(c.run)
}

func (c *SetGuard) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.SetGuardRequest{
		MaxDeviationBps: uint32(c.maxDeviationBps),
	}
	if _, err := send[api.SetGuardResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.SetGuardPath, req); err != nil {
		return err
	}
	return nil
}

func (c *SetGuard) Synopsis() string {
	return "Updates the oracle deviation guard parameters"
}

type SetEpoch struct {
	cmdutil.ClientFlags
	KeyFlags

	maxNotional string
	epochBlocks uint64
}

func (c *SetEpoch) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-epoch", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.StringVar(&c.maxNotional, "max-notional", "0", "max order notional per epoch in whole USD (0 disables)")
	fset.Uint64Var(&c.epochBlocks, "epoch-blocks", 0, "epoch window length in blocks (0 disables)")
	return fset, cli.CmdFunc(c.run)
}

func (c *SetEpoch) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	maxNotional, err := decimal.NewFromString(c.maxNotional)
	if err != nil {
		return fmt.Errorf("could not parse max-notional %q: %w", c.maxNotional, err)
	}
	req := &api.SetEpochRequest{
		MaxNotional1e18: maxNotional.Shift(18).Floor(),
		EpochBlocks:     c.epochBlocks,
	}
	if _, err := send[api.SetEpochResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.SetEpochPath, req); err != nil {
		return err
	}
	return nil
}

func (c *SetEpoch) Synopsis() string {
	return "Updates the epoch notional rate limiter parameters"
}

type SetRebalanceParams struct {
	cmdutil.ClientFlags
	KeyFlags

	reserveBps  uint
	deadbandBps uint
	slippageBps uint
}

func (c *SetRebalanceParams) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-rebalance-params", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.UintVar(&c.reserveBps, "reserve-bps", 0, "equity fraction kept in the settlement asset")
	fset.UintVar(&c.deadbandBps, "deadband-bps", 0, "allocation delta fraction below which no order is placed")
	fset.UintVar(&c.slippageBps, "slippage-bps", 0, "limit price allowance beyond the touch")
	return fset, cli.CmdFunc(c.run)
}

func (c *SetRebalanceParams) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.SetRebalanceParamsRequest{
		ReserveBps:  uint32(c.reserveBps),
		DeadbandBps: uint32(c.deadbandBps),
		SlippageBps: uint32(c.slippageBps),
	}
	if _, err := send[api.SetRebalanceParamsResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.SetRebalanceParamsPath, req); err != nil {
		return err
	}
	return nil
}

func (c *SetRebalanceParams) Synopsis() string {
	return "Updates the allocation engine parameters"
}

type SetAutoDeploy struct {
	cmdutil.ClientFlags
	KeyFlags

	autoDeployBps uint
}

func (c *SetAutoDeploy) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-auto-deploy", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.UintVar(&c.autoDeployBps, "auto-deploy-bps", 0, "fraction of each net deposit forwarded to the venue")
	return fset, cli.CmdFunc(c.run)
}

func (c *SetAutoDeploy) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.SetAutoDeployRequest{
		AutoDeployBps: uint32(c.autoDeployBps),
	}
	if _, err := send[api.SetAutoDeployResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.SetAutoDeployPath, req); err != nil {
		return err
	}
	return nil
}

func (c *SetAutoDeploy) Synopsis() string {
	return "Updates the deposit auto-deploy fraction"
}

type SetMinDeposit struct {
	cmdutil.ClientFlags
	KeyFlags

	minDeposit string
}

func (c *SetMinDeposit) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-min-deposit", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.StringVar(&c.minDeposit, "min-deposit", "0", "minimum deposit in whole USD")
	return fset, cli.CmdFunc(c.run)
}

func (c *SetMinDeposit) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	minDeposit, err := decimal.NewFromString(c.minDeposit)
	if err != nil {
		return fmt.Errorf("could not parse min-deposit %q: %w", c.minDeposit, err)
	}
	req := &api.SetMinDepositRequest{
		MinDeposit1e18: minDeposit.Shift(18).Floor(),
	}
	if _, err := send[api.SetMinDepositResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.SetMinDepositPath, req); err != nil {
		return err
	}
	return nil
}

func (c *SetMinDeposit) Synopsis() string {
	return "Updates the vault minimum deposit"
}
