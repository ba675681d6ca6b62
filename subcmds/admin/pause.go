// Copyright (c) 2025 BVK Chaitanya

package admin

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
)

type Pause struct {
	cmdutil.ClientFlags
	KeyFlags

	resume bool
}

func (c *Pause) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("pause", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	c.KeyFlags.SetFlags(fset)
	fset.BoolVar(&c.resume, "resume", false, "when true, resumes deposits instead")
	return fset, cli.CmdFunc(c.run)
}

func (c *Pause) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	req := &api.PauseRequest{
		Paused: !c.resume,
	}
	resp, err := send[api.PauseResponse](ctx, &c.ClientFlags, &c.KeyFlags, api.PausePath, req)
	if err != nil {
		return err
	}
	if resp.Paused {
		fmt.Println("deposits are paused")
	} else {
		fmt.Println("deposits are resumed")
	}
	return nil
}

func (c *Pause) Synopsis() string {
	return "Pauses or resumes vault deposits"
}
