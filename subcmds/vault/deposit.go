// Copyright (c) 2025 BVK Chaitanya

// Package vault implements the client subcommands for the vault share
// ledger endpoints. Amounts are given in whole USD units on the command
// line and converted to the 1e18 base on the wire.
package vault

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type Deposit struct {
	cmdutil.ClientFlags
}

func (c *Deposit) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("deposit", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Deposit) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("this command takes two (user, usd-amount) arguments")
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("could not parse amount %q: %w", args[1], err)
	}
	req := &api.DepositRequest{
		User:       args[0],
		Amount1e18: amount.Shift(18).Floor(),
	}
	resp, err := cmdutil.Post[api.DepositResponse](ctx, &c.ClientFlags, api.DepositPath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}

func (c *Deposit) Synopsis() string {
	return "Deposits capital into the vault for a user"
}
