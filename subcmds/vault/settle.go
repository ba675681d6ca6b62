// Copyright (c) 2025 BVK Chaitanya

package vault

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strconv"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
)

type Settle struct {
	cmdutil.ClientFlags
}

func (c *Settle) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("settle", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Settle) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (withdraw-id) argument")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("could not parse withdraw id %q: %w", args[0], err)
	}
	req := &api.SettleRequest{
		ID: id,
	}
	resp, err := cmdutil.Post[api.SettleResponse](ctx, &c.ClientFlags, api.SettlePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}

func (c *Settle) Synopsis() string {
	return "Settles a queued withdrawal and pays out the user"
}
