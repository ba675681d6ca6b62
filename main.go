// Copyright (c) 2023 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/subcmds"
	"github.com/bvk/corevault/subcmds/admin"
	"github.com/bvk/corevault/subcmds/db"
	"github.com/bvk/corevault/subcmds/setup"
	"github.com/bvk/corevault/subcmds/vault"
)

func main() {
	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Edit),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	vaultCmds := []cli.Command{
		new(vault.Deposit),
		new(vault.Withdraw),
		new(vault.Settle),
		new(vault.FeeQuote),
		new(vault.Shares),
	}

	adminCmds := []cli.Command{
		new(admin.Pause),
		new(admin.SetFees),
		new(admin.SetGuard),
		new(admin.SetEpoch),
		new(admin.SetRebalanceParams),
		new(admin.SetAutoDeploy),
		new(admin.SetMinDeposit),
	}

	setupCmds := []cli.Command{
		new(setup.Telegram),
		new(setup.Admin),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		new(subcmds.Rebalance),
		new(subcmds.Watch),
		new(subcmds.IDGen),
		cli.CommandGroup("vault", vaultCmds...),
		cli.CommandGroup("admin", adminCmds...),
		cli.CommandGroup("setup", setupCmds...),
		cli.CommandGroup("db", dbCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
