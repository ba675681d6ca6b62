// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/hlws"
)

type Watch struct {
	wsURL string

	pingInterval time.Duration
}

func (c *Watch) Synopsis() string {
	return "Streams top of book updates for order-book assets"
}

func (c *Watch) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("watch", flag.ContinueOnError)
	fset.StringVar(&c.wsURL, "ws-url", "", "websocket feed address")
	fset.DurationVar(&c.pingInterval, "ping-interval", 30*time.Second, "websocket keepalive interval")
	return fset, cli.CmdFunc(c.run)
}

func (c *Watch) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("this command takes one or more (asset-id) arguments")
	}
	var assets []uint32
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("could not parse asset id %q: %w", arg, err)
		}
		assets = append(assets, uint32(v))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := hlws.New(&hlws.Options{
		WebsocketURL: c.wsURL,
		PingInterval: c.pingInterval,
	}, assets)
	if err != nil {
		return err
	}
	defer client.Close()

	ch, unsubscribe := client.BBOCh()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Printf("%s asset=%d bid=%s ask=%s\n", update.Time.Format(time.RFC3339), update.Asset, update.Bid.String(), update.Ask.String())
		}
	}
}
