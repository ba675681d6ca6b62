// Copyright (c) 2025 BVK Chaitanya

package admin

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type SetFees struct {
	cmdutil.ClientFlags
	KeyFlags

	depositBps  uint
	withdrawBps uint
	tiers       string
}

func (c *SetFees) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-fees", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.UintVar(&c.depositBps, "deposit-bps", 0, "deposit fee in basis points")
	fset.UintVar(&c.withdrawBps, "withdraw-bps", 0, "default withdrawal fee in basis points")
	fset.StringVar(&c.tiers, "tiers", "", "withdrawal fee tiers as min-usd:bps pairs, comma-separated")
	return fset, cli.CmdFunc(c.run)
}

func (c *SetFees) CommandHelp() string {
	return `

Command "set-fees" replaces the vault fee schedule. Withdrawal fee tiers
override the default withdrawal fee by gross amount; the tier with the
largest matching minimum wins. For example:

  $ corevault admin set-fees -deposit-bps=10 -withdraw-bps=50 -tiers=10000:30,100000:10

`
}

func (c *SetFees) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.SetFeesRequest{
		DepositFeeBps:  uint32(c.depositBps),
		WithdrawFeeBps: uint32(c.withdrawBps),
	}
	if len(c.tiers) > 0 {
		for _, field := range strings.Split(c.tiers, ",") {
			min, bps, ok := strings.Cut(strings.TrimSpace(field), ":")
			if !ok {
				return fmt.Errorf("tier %q is not a min-usd:bps pair", field)
			}
			amount, err := decimal.NewFromString(min)
			if err != nil {
				return fmt.Errorf("could not parse tier minimum %q: %w", min, err)
			}
			fee, err := strconv.ParseUint(bps, 10, 32)
			if err != nil {
				return fmt.Errorf("could not parse tier fee %q: %w", bps, err)
			}
			req.WithdrawFeeTiers = append(req.WithdrawFeeTiers, api.FeeTier{
				MinAmount1e18: amount.Shift(18).Floor(),
				FeeBps:        uint32(fee),
			})
		}
	}
	if _, err := send[api.SetFeesResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.SetFeesPath, req); err != nil {
		return err
	}
	return nil
}

func (c *SetFees) Synopsis() string {
	return "Replaces the vault fee schedule"
}
