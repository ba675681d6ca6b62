// Copyright (c) 2025 BVK Chaitanya

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

type Withdraw struct {
	cmdutil.ClientFlags
}

func (c *Withdraw) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Withdraw) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("this command takes two (user, shares) arguments")
	}
	shares, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("could not parse shares %q: %w", args[1], err)
	}
	req := &api.WithdrawRequest{
		User:   args[0],
		Shares: shares.Shift(18).Floor(),
	}
	resp, err := cmdutil.Post[api.WithdrawResponse](ctx, &c.ClientFlags, api.WithdrawPath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}

func (c *Withdraw) Synopsis() string {
	return "Queues a withdrawal by burning a user's shares"
}
