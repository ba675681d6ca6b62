// Copyright (c) 2025 BVK Chaitanya

package vault

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type FeeQuote struct {
	cmdutil.ClientFlags
}

func (c *FeeQuote) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("fee-quote", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *FeeQuote) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (usd-amount) argument")
	}
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("could not parse amount %q: %w", args[0], err)
	}
	req := &api.FeeQuoteRequest{
		Amount1e18: amount.Shift(18).Floor(),
	}
	resp, err := cmdutil.Post[api.FeeQuoteResponse](ctx, &c.ClientFlags, api.FeeQuotePath, req)
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", resp.FeeBps)
	return nil
}

func (c *FeeQuote) Synopsis() string {
	return "Prints the withdrawal fee bps an amount would pay now"
}
