// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shopspring/decimal"
)

type Status struct {
	cmdutil.ClientFlags

	noProcess bool
}

func (c *Status) Synopsis() string {
	return "Prints vault, allocation and daemon status"
}

func (c *Status) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.BoolVar(&c.noProcess, "no-process", false, "when true daemon process stats are not printed")
	return fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	vreq := new(api.VaultStatusRequest)
	vresp, err := cmdutil.Post[api.VaultStatusResponse](ctx, &c.ClientFlags, api.VaultStatusPath, vreq)
	if err != nil {
		return fmt.Errorf("could not fetch vault status: %w", err)
	}
	hreq := new(api.HandlerStatusRequest)
	hresp, err := cmdutil.Post[api.HandlerStatusResponse](ctx, &c.ClientFlags, api.HandlerStatusPath, hreq)
	if err != nil {
		return fmt.Errorf("could not fetch allocation status: %w", err)
	}

	usd := func(v decimal.Decimal) string {
		return v.Shift(-18).StringFixed(6)
	}

	fmt.Printf("Block Height: %d\n", hresp.Height)
	fmt.Printf("Equity: %s\n", usd(hresp.Equity1e18))
	fmt.Printf("NAV: %s\n", usd(vresp.NAV1e18))
	fmt.Printf("Price Per Share: %s\n", usd(vresp.PPS1e18))
	fmt.Printf("Total Shares: %s\n", vresp.TotalShares.Shift(-18).StringFixed(6))
	fmt.Printf("Idle Cash: %s\n", usd(vresp.Cash1e18))
	fmt.Printf("Pending Withdrawals: %s\n", usd(vresp.Pending1e18))
	if vresp.Paused {
		fmt.Printf("Deposits: PAUSED\n")
	}

	if len(hresp.Positions) > 0 {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "Asset\tBalance\tAvailable\tPrice\tValue\t\n")
		for _, p := range hresp.Positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.Asset, p.BalanceSz.String(), p.AvailableSz.String(), p.Px1e8.Shift(-8).StringFixed(4), usd(p.UsdValue1e18))
		}
		tw.Flush()
	}

	if len(vresp.PendingWithdraws) > 0 {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "ID\tUser\tShares\tGross\tFeeBps\tAge\t\n")
		for _, w := range vresp.PendingWithdraws {
			age := time.Since(w.CreateTime).Truncate(time.Second)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t\n", w.ID, w.User, w.Shares.Shift(-18).StringFixed(6), usd(w.Gross1e18), w.FeeBps, age)
		}
		tw.Flush()
	}

	if !c.noProcess {
		if err := c.printProcessStats(ctx); err != nil {
			fmt.Printf("\n(daemon process stats unavailable: %v)\n", err)
		}
	}
	return nil
}

// printProcessStats resolves the daemon pid through the /pid handler and
// reports its resource usage.
func (c *Status) printProcessStats(ctx context.Context) error {
	addrURL := c.AddressURL()
	addrURL.Path = path.Join(addrURL.Path, "pid")
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, addrURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HttpClient().Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	pid, err := strconv.ParseInt(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("could not parse pid %q: %w", data, err)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("Daemon PID: %d\n", pid)
	if created, err := proc.CreateTimeWithContext(ctx); err == nil {
		uptime := time.Since(time.UnixMilli(created)).Truncate(time.Second)
		fmt.Printf("Daemon Uptime: %s\n", uptime)
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		fmt.Printf("Daemon CPU: %.2f%%\n", cpu)
	}
	if minfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		fmt.Printf("Daemon RSS: %d MiB\n", minfo.RSS/(1024*1024))
	}
	return nil
}
