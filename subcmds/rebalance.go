// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/shopspring/decimal"
)

type Rebalance struct {
	cmdutil.ClientFlags

	minOuts string
}

func (c *Rebalance) Synopsis() string {
	return "Triggers a rebalance pass on the daemon"
}

func (c *Rebalance) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("rebalance", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.minOuts, "min-outs", "", "comma-separated minimum order sizes per asset, in sz units")
	return fset, cli.CmdFunc(c.run)
}

func (c *Rebalance) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := new(api.RebalanceRequest)
	if len(c.minOuts) > 0 {
		for _, field := range strings.Split(c.minOuts, ",") {
			v, err := decimal.NewFromString(strings.TrimSpace(field))
			if err != nil {
				return fmt.Errorf("could not parse min-out %q: %w", field, err)
			}
			req.MinOuts = append(req.MinOuts, v)
		}
	}
	resp, err := cmdutil.Post[api.RebalanceResponse](ctx, &c.ClientFlags, api.RebalancePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
