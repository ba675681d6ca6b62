// Copyright (c) 2025 BVK Chaitanya

// Package server wires the vault share ledger and the core interaction
// handler behind a http POST api. All vault and handler entry points are
// serialized behind one mutex; the accounting layers themselves are
// single-threaded by design.
package server

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/handler"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/telegram"
	"github.com/bvk/corevault/vault"
	"github.com/bvkgo/kv"
)

// Venue bundles the external execution venue bindings the handler runs
// against. In paper mode all three are served by the simulator.
type Venue struct {
	Reader hlcore.Reader
	Writer hlcore.Writer
	Bridge hlcore.Bridge
}

type Server struct {
	closeCtx   context.Context
	closeCause context.CancelCauseFunc

	wg sync.WaitGroup

	opts Options

	db kv.Database

	mutex   sync.Mutex
	vault   *vault.Vault
	handler *handler.Handler

	adminKey *ecdsa.PublicKey

	telegramClient *telegram.Client
	secrets        *Secrets
}

func New(ctx context.Context, secrets *Secrets, db kv.Database, venue *Venue, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = new(Secrets)
	}
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	closeCtx, closeCause := context.WithCancelCause(context.Background())
	defer func() {
		if status != nil {
			closeCause(status)
		}
	}()

	s := &Server{
		closeCtx:   closeCtx,
		closeCause: closeCause,
		opts:       *opts,
		db:         db,
		secrets:    secrets,
	}

	if len(secrets.AdminPublicKey) != 0 {
		key, err := ParseAdminPublicKey(secrets.AdminPublicKey)
		if err != nil {
			return nil, err
		}
		s.adminKey = key
	}

	load := func(ctx context.Context, r kv.Reader) error {
		h, err := handler.Load(ctx, r, venue.Reader, venue.Writer, venue.Bridge)
		if err != nil {
			return err
		}
		v, err := vault.Load(ctx, r, h)
		if err != nil {
			return err
		}
		s.handler, s.vault = h, v
		return nil
	}
	if err := kv.WithReader(ctx, db, load); err != nil {
		return nil, fmt.Errorf("could not load vault and handler: %w", err)
	}
	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	if s.secrets.Telegram != nil {
		tc, err := telegram.New(ctx, s.db, s.secrets.Telegram)
		if err != nil {
			return fmt.Errorf("could not create telegram client: %w", err)
		}
		s.telegramClient = tc
		if err := s.registerTelegramCommands(ctx); err != nil {
			return fmt.Errorf("could not register telegram commands: %w", err)
		}
	}

	s.wg.Add(2)
	go s.forwardHandlerEvents()
	go s.forwardVaultEvents()

	if s.opts.RebalanceInterval > 0 && !s.opts.NoRebalance {
		s.wg.Add(1)
		go s.runRebalanceLoop()
	}
	if s.opts.SettleInterval > 0 {
		s.wg.Add(1)
		go s.runSettleLoop()
	}
	return nil
}

func (s *Server) Close() error {
	s.closeCause(os.ErrClosed)
	s.wg.Wait()
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	return nil
}

func (s *Server) sleep(d time.Duration) error {
	select {
	case <-s.closeCtx.Done():
		return context.Cause(s.closeCtx)
	case <-time.After(d):
		return nil
	}
}

// save persists the vault ledger and the handler's mutable state in one
// transaction. Callers hold the mutex.
func (s *Server) save(ctx context.Context) error {
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		if err := s.vault.Save(ctx, rw); err != nil {
			return err
		}
		return s.handler.Save(ctx, rw)
	})
}

// saveAll persists configs and mutable state in one transaction. Admin
// operations use it so a parameter change and its effects land together.
// Callers hold the mutex.
func (s *Server) saveAll(ctx context.Context) error {
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		if err := s.vault.SaveConfig(ctx, rw); err != nil {
			return err
		}
		if err := s.handler.SaveConfig(ctx, rw); err != nil {
			return err
		}
		if err := s.vault.Save(ctx, rw); err != nil {
			return err
		}
		return s.handler.Save(ctx, rw)
	})
}

func (s *Server) runRebalanceLoop() {
	defer s.wg.Done()

	for s.closeCtx.Err() == nil {
		if err := s.sleep(s.opts.RebalanceInterval); err != nil {
			return
		}

		s.mutex.Lock()
		_, err := s.handler.Rebalance(s.closeCtx, nil)
		if err == nil {
			err = s.save(s.closeCtx)
		}
		s.mutex.Unlock()

		if err != nil && !errors.Is(err, context.Cause(s.closeCtx)) {
			log.Printf("background rebalance failed (will retry): %v", err)
		}
	}
}

func (s *Server) runSettleLoop() {
	defer s.wg.Done()

	for s.closeCtx.Err() == nil {
		if err := s.sleep(s.opts.SettleInterval); err != nil {
			return
		}

		s.mutex.Lock()
		for _, req := range s.vault.PendingWithdraws() {
			if _, err := s.vault.Settle(s.closeCtx, req.ID); err != nil {
				if !errors.Is(err, context.Cause(s.closeCtx)) {
					log.Printf("could not settle withdraw %d (will retry): %v", req.ID, err)
				}
				break
			}
		}
		if err := s.save(s.closeCtx); err != nil {
			log.Printf("could not save after settlement pass: %v", err)
		}
		s.mutex.Unlock()
	}
}

func (s *Server) notify(text string) {
	if s.telegramClient == nil {
		return
	}
	if err := s.telegramClient.SendMessage(s.closeCtx, time.Now(), text); err != nil {
		log.Printf("could not send telegram notification (ignored): %v", err)
	}
}

func (s *Server) forwardHandlerEvents() {
	defer s.wg.Done()

	receiver, err := s.handler.Events()
	if err != nil {
		log.Printf("could not subscribe to handler events (unexpected): %v", err)
		return
	}
	defer receiver.Close()

	stopf := context.AfterFunc(s.closeCtx, receiver.Close)
	defer stopf()

	for s.closeCtx.Err() == nil {
		ev, err := receiver.Receive()
		if err != nil {
			continue
		}
		switch v := ev.(type) {
		case *handler.GuardSkipEvent:
			s.notify(fmt.Sprintf("oracle deviation on %s (%s path): raw %s clamped %s, orders skipped",
				v.Asset, v.Path, v.RawPx1e8, v.ClampedPx1e8))
		case *handler.RateLimitEvent:
			s.notify(fmt.Sprintf("epoch notional limit hit on %s (%s path): notional %s, window sent %s",
				v.Asset, v.Path, v.Notional1e18, v.Sent1e18))
		}
	}
}

func (s *Server) forwardVaultEvents() {
	defer s.wg.Done()

	receiver, err := s.vault.Events()
	if err != nil {
		log.Printf("could not subscribe to vault events (unexpected): %v", err)
		return
	}
	defer receiver.Close()

	stopf := context.AfterFunc(s.closeCtx, receiver.Close)
	defer stopf()

	for s.closeCtx.Err() == nil {
		ev, err := receiver.Receive()
		if err != nil {
			continue
		}
		switch v := ev.(type) {
		case *vault.WithdrawSettledEvent:
			s.notify(fmt.Sprintf("withdraw %d settled for %s: net %s fee %s", v.ID, v.User, v.Net1e18, v.Fee1e18))
		case *vault.PauseEvent:
			s.notify(fmt.Sprintf("vault paused=%v", v.Paused))
		}
	}
}

// HandlerMap returns the http POST handlers to register with the api
// server.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.DepositPath:     postJSONHandler(s.doDeposit),
		api.WithdrawPath:    postJSONHandler(s.doWithdraw),
		api.SettlePath:      postJSONHandler(s.doSettle),
		api.VaultStatusPath: postJSONHandler(s.doVaultStatus),
		api.FeeQuotePath:    postJSONHandler(s.doFeeQuote),
		api.SharesPath:      postJSONHandler(s.doShares),

		api.RebalancePath:     postJSONHandler(s.doRebalance),
		api.HandlerStatusPath: postJSONHandler(s.doHandlerStatus),

		api.PausePath:              postJSONHandler(s.doPause),
		api.SetFeesPath:            postJSONHandler(s.doSetFees),
		api.SetGuardPath:           postJSONHandler(s.doSetGuard),
		api.SetEpochPath:           postJSONHandler(s.doSetEpoch),
		api.SetRebalanceParamsPath: postJSONHandler(s.doSetRebalanceParams),
		api.SetAutoDeployPath:      postJSONHandler(s.doSetAutoDeploy),
		api.SetMinDepositPath:      postJSONHandler(s.doSetMinDeposit),
	}
}
