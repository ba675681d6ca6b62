// Copyright (c) 2025 BVK Chaitanya

// Package hlws maintains a websocket subscription to the venue's top of
// book feed. The connection is reopened with backoff on failure and all
// updates are fanned out through a topic.
package hlws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/corevault/ctxutil"
	"github.com/bvkgo/topic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type Options struct {
	// WebsocketURL is the address of the venue's websocket feed.
	WebsocketURL string

	PingInterval time.Duration
}

func (v *Options) setDefaults() {
	if v.PingInterval == 0 {
		v.PingInterval = 30 * time.Second
	}
}

// BBOUpdate is one top of book change for one order-book asset, in the
// market's raw price base.
type BBOUpdate struct {
	Asset uint32 `json:"asset"`

	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`

	Time time.Time `json:"time"`
}

type Client struct {
	cg ctxutil.CloseGroup

	opts Options

	assets []uint32

	bboTopic *topic.Topic[*BBOUpdate]
}

// New opens a feed for the given order-book asset ids. The feed runs in
// the background until Close.
func New(opts *Options, assets []uint32) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if len(opts.WebsocketURL) == 0 {
		return nil, fmt.Errorf("websocket url cannot be empty")
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("asset list cannot be empty")
	}
	c := &Client{
		opts:     *opts,
		assets:   assets,
		bboTopic: topic.New[*BBOUpdate](),
	}
	c.cg.Go(c.goGetMessages)
	return c, nil
}

func (c *Client) Close() error {
	c.cg.Close()
	c.bboTopic.Close()
	return nil
}

// BBOCh returns a channel of top of book updates and an unsubscribe
// function. The most recent update is delivered first.
func (c *Client) BBOCh() (<-chan *BBOUpdate, func()) {
	sub, ch, _ := c.bboTopic.Subscribe(1, true /* includeRecent */)
	return ch, sub.Unsubscribe
}

// Recent returns the last observed update, if any.
func (c *Client) Recent() (*BBOUpdate, bool) {
	return topic.Recent(c.bboTopic)
}

func (c *Client) goGetMessages(ctx context.Context) {
	for i := 0; ctx.Err() == nil; i = min(i+1, 5) {
		if err := c.getMessages(ctx); err != nil {
			if !errors.Is(err, os.ErrClosed) && !errors.Is(err, context.Canceled) {
				slog.Warn("could not get messages over websocket (may retry)", "err", err)
			}
			if err := sleep(ctx, time.Second<<i); err != nil {
				return
			}
		}
	}
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Assets []uint32 `json:"assets"`
}

func (c *Client) getMessages(ctx context.Context) (status error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer func() {
		if status != nil {
			cancel(status)
		} else {
			cancel(os.ErrClosed)
		}
	}()

	dialer := websocket.Dialer{
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, c.opts.WebsocketURL, nil)
	if err != nil {
		slog.Error("could not dial to websocket feed", "err", err)
		return err
	}
	defer conn.Close()

	// Close the connection when the context is canceled so that blocked
	// reads return.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	sub := &subscribeRequest{
		Method: "bbo.subscribe",
		Assets: c.assets,
	}
	if err := conn.WriteJSON(sub); err != nil {
		slog.Error("could not send websocket subscribe request", "err", err)
		return err
	}

	lastPing := time.Now()
	for ctx.Err() == nil {
		if time.Since(lastPing) > c.opts.PingInterval {
			deadline := time.Now().Add(c.opts.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Error("websocket ping failed; reopening new socket", "err", err)
				return err
			}
			lastPing = time.Now()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			slog.Error("could not read websocket message", "err", err)
			return err
		}
		update := new(BBOUpdate)
		if err := json.Unmarshal(data, update); err != nil {
			slog.Error("could not handle websocket message", "err", err)
			continue
		}
		if update.Time.IsZero() {
			update.Time = time.Now()
		}
		c.bboTopic.Send(update)
	}
	return context.Cause(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	ctxutil.Sleep(ctx, d)
	return ctx.Err()
}
