// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/ctxutil"
	"github.com/bvk/corevault/daemonize"
	"github.com/bvk/corevault/hlrpc"
	"github.com/bvk/corevault/httputil"
	"github.com/bvk/corevault/server"
	"github.com/bvk/corevault/subcmds/cmdutil"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/visvasity/sglog"
)

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof     bool
	noRebalance bool

	rebalanceInterval time.Duration
	settleInterval    time.Duration

	restURL           string
	maxRequestsPerSec float64

	secretsPath string
	dataDir     string
}

func (c *Run) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.BoolVar(&c.noRebalance, "no-rebalance", false, "when true the periodic rebalance loop is not started")
	fset.DurationVar(&c.rebalanceInterval, "rebalance-interval", time.Minute, "interval between automatic rebalance passes")
	fset.DurationVar(&c.settleInterval, "settle-interval", time.Minute, "interval between withdrawal settlement passes")
	fset.StringVar(&c.restURL, "rest-url", "", "live venue http api address; paper simulator when empty")
	fset.Float64Var(&c.maxRequestsPerSec, "max-requests-per-sec", 25, "outgoing request rate limit for the live venue")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	return fset, cli.CmdFunc(c.run)
}

func (c *Run) Synopsis() string {
	return "Runs the corevault daemon in foreground or background"
}

func (c *Run) CommandHelp() string {
	return `

Command "run" starts the corevault service. The service loads the vault
share ledger and the core handler state from the database and resumes the
periodic rebalance and withdrawal settlement loops.

The venue is the live venue's http api when "-rest-url" is given.
Otherwise it is the in-memory paper simulator, constructed from a
"paper.json" file in the data directory. See the paper command help for
the file format.

SECRETS FILE

Optional integrations are configured through a secrets file in JSON
format. An example secrets file is given below:

    {
        "telegram":{
            "token":"111111111"
        },
        "admin_public_key":"-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----"
    }

When "admin_public_key" is absent, the admin api endpoints are disabled.

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".corevault")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	var secrets *server.Secrets
	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}
	if _, err := os.Stat(c.secretsPath); err == nil {
		secrets, err = server.SecretsFromFile(c.secretsPath)
		if err != nil {
			return err
		}
	}

	if ip := net.ParseIP(c.IP); ip == nil {
		return fmt.Errorf("invalid ip address")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port number")
	}
	addr := &net.TCPAddr{
		IP:   net.ParseIP(c.IP),
		Port: c.Port,
	}

	// Health checker for the background process initialization. We need to
	// verify that responding http server is really our child and not an older
	// instance.
	check := func(ctx context.Context, child *os.Process) (bool, error) {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/pid", addr.String()))
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return true, fmt.Errorf("http status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return true, err
		}
		if pid := string(data); pid != fmt.Sprintf("%d", child.Pid) {
			if !c.restart {
				return false, fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
			}
			return true, fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
		}
		return false, nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, "COREVAULT_DAEMONIZE", check); err != nil {
			return err
		}
	}

	log.SetFlags(log.Flags() | log.Lmicroseconds)
	backend := sglog.NewBackend(&sglog.Options{
		LogDirs: []string{filepath.Join(dataDir, "logs")},
	})
	defer backend.Close()
	slog.SetDefault(slog.New(backend.Handler()))
	log.Printf("using data directory %s and secrets file %s", dataDir, c.secretsPath)

	lockPath := filepath.Join(dataDir, "corevault.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			log.Printf("waiting for the previous instance to shutdown")
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		s.AddHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
		s.AddHandler("/debug/pprof/block", pprof.Handler("block"))
		s.AddHandler("/debug/pprof/mutex", pprof.Handler("mutex"))
	}

	// Open the database.
	bopts := badger.DefaultOptions(dataDir)
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, isGoodKey)

	s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))

	venue, err := c.prepareVenue(ctx, db, dataDir)
	if err != nil {
		return err
	}

	sopts := &server.Options{
		NoRebalance:       c.noRebalance,
		RebalanceInterval: c.rebalanceInterval,
		SettleInterval:    c.settleInterval,
	}
	bot, err := server.New(ctx, secrets, db, venue, sopts)
	if err != nil {
		return err
	}
	defer bot.Close()

	// Add vault and handler api handlers.
	apiMap := bot.HandlerMap()
	for k, v := range apiMap {
		s.AddHandler(k, v)
	}
	defer func() {
		for k := range apiMap {
			s.RemoveHandler(k)
		}
	}()

	if err := bot.Start(ctx); err != nil {
		return err
	}

	log.Printf("started corevault server at %s", addr)
	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))

	<-ctx.Done()
	log.Printf("corevault server is shutting down")
	return nil
}

// prepareVenue builds the execution venue: the live http client when a
// rest url is configured, the in-memory paper simulator (seeding the
// database on first run) otherwise.
func (c *Run) prepareVenue(ctx context.Context, db kv.Database, dataDir string) (*server.Venue, error) {
	if len(c.restURL) != 0 {
		client, err := hlrpc.New(&hlrpc.Options{
			RestURL:           c.restURL,
			MaxRequestsPerSec: c.maxRequestsPerSec,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create venue client for %q: %w", c.restURL, err)
		}
		return &server.Venue{Reader: client, Writer: client, Bridge: client}, nil
	}
	return preparePaperVenue(ctx, db, filepath.Join(dataDir, "paper.json"))
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
