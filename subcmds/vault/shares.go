// Copyright (c) 2025 BVK Chaitanya

package vault

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
)

type Shares struct {
	cmdutil.ClientFlags
}

func (c *Shares) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("shares", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Shares) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (user) argument")
	}
	req := &api.SharesRequest{
		User: args[0],
	}
	resp, err := cmdutil.Post[api.SharesResponse](ctx, &c.ClientFlags, api.SharesPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", resp.Shares.Shift(-18).String())
	return nil
}

func (c *Shares) Synopsis() string {
	return "Prints a user's vault share balance"
}
