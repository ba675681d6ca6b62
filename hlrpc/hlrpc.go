// Copyright (c) 2025 BVK Chaitanya

// Package hlrpc implements the venue interfaces over the venue's http
// endpoints: oracle views through the info endpoint and action dispatch
// through the exchange endpoint. Requests are throttled client-side to
// stay inside the venue's rate limits.
package hlrpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bvk/corevault/ctxutil"
	"github.com/bvk/corevault/hlcore"
	"github.com/bvk/corevault/units"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type Options struct {
	// RestURL is the base address of the venue's http api.
	RestURL string

	HttpClientTimeout time.Duration

	// MaxRequestsPerSec caps outgoing request rate.
	MaxRequestsPerSec float64
}

func (v *Options) setDefaults() {
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 10 * time.Second
	}
	if v.MaxRequestsPerSec == 0 {
		v.MaxRequestsPerSec = 25
	}
}

type Client struct {
	opts Options

	infoURL     *url.URL
	exchangeURL *url.URL

	client *http.Client

	limiter *rate.Limiter
}

var (
	_ hlcore.Reader = &Client{}
	_ hlcore.Writer = &Client{}
	_ hlcore.Bridge = &Client{}
)

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if len(opts.RestURL) == 0 {
		return nil, fmt.Errorf("rest url cannot be empty")
	}
	base, err := url.Parse(opts.RestURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse rest url %q: %w", opts.RestURL, err)
	}
	c := &Client{
		opts:        *opts,
		infoURL:     base.JoinPath("/info"),
		exchangeURL: base.JoinPath("/exchange"),
		client: &http.Client{
			Timeout: opts.HttpClientTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.MaxRequestsPerSec), 1),
	}
	return c, nil
}

type infoRequest struct {
	Type string `json:"type"`

	User   string `json:"user,omitempty"`
	Token  uint32 `json:"token,omitempty"`
	Market uint32 `json:"market,omitempty"`
	Asset  uint32 `json:"asset,omitempty"`
}

func (c *Client) postJSON(ctx context.Context, u *url.URL, request, result interface{}) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		slog.Error("could not create http post request with context", "url", u, "err", err)
		return err
	}
	req.Header.Set("content-type", "application/json")
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not do http client request", "err", err)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("post request returned with status code 429 - too many requests (retrying)")
			ctxutil.Sleep(ctx, time.Second)
			return c.postJSON(ctx, u, request, result)
		}
		slog.Error("http POST is unsuccessful", "status", resp.StatusCode, "url", u.String())
		return fmt.Errorf("http POST returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			slog.Error("could not unmarshal response body", "err", err)
			return err
		}
	}
	return nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var result struct {
		Height uint64 `json:"height"`
	}
	req := &infoRequest{Type: "blockHeight"}
	if err := c.postJSON(ctx, c.infoURL, req, &result); err != nil {
		return 0, err
	}
	return result.Height, nil
}

func (c *Client) AccountExists(ctx context.Context, owner string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	req := &infoRequest{Type: "account", User: owner}
	if err := c.postJSON(ctx, c.infoURL, req, &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

func (c *Client) SpotBalance(ctx context.Context, owner string, token uint32) (*hlcore.SpotBalance, error) {
	var result struct {
		Total    decimal.Decimal `json:"total"`
		Hold     decimal.Decimal `json:"hold"`
		EntryNtl decimal.Decimal `json:"entryNtl"`
	}
	req := &infoRequest{Type: "spotBalance", User: owner, Token: token}
	if err := c.postJSON(ctx, c.infoURL, req, &result); err != nil {
		return nil, err
	}
	return &hlcore.SpotBalance{
		Total:    result.Total,
		Hold:     result.Hold,
		EntryNtl: result.EntryNtl,
	}, nil
}

func (c *Client) TokenInfo(ctx context.Context, token uint32) (*hlcore.TokenInfo, error) {
	var result struct {
		Name                string `json:"name"`
		SzDecimals          int32  `json:"szDecimals"`
		WeiDecimals         int32  `json:"weiDecimals"`
		EvmExtraWeiDecimals int32  `json:"evmExtraWeiDecimals"`
	}
	req := &infoRequest{Type: "tokenInfo", Token: token}
	if err := c.postJSON(ctx, c.infoURL, req, &result); err != nil {
		return nil, err
	}
	return &hlcore.TokenInfo{
		Name: result.Name,
		Decimals: units.TokenDecimalProfile{
			SzDecimals:          result.SzDecimals,
			WeiDecimals:         result.WeiDecimals,
			EvmExtraWeiDecimals: result.EvmExtraWeiDecimals,
		},
	}, nil
}

func (c *Client) SpotPx(ctx context.Context, market uint32) (decimal.Decimal, error) {
	var result struct {
		Px decimal.Decimal `json:"px"`
	}
	req := &infoRequest{Type: "spotPx", Market: market}
	if err := c.postJSON(ctx, c.infoURL, req, &result); err != nil {
		return decimal.Decimal{}, err
	}
	return result.Px, nil
}

func (c *Client) BBO(ctx context.Context, asset uint32) (*hlcore.BBO, error) {
	var result struct {
		Bid decimal.Decimal `json:"bid"`
		Ask decimal.Decimal `json:"ask"`
	}
	req := &infoRequest{Type: "bbo", Asset: asset}
	if err := c.postJSON(ctx, c.infoURL, req, &result); err != nil {
		return nil, err
	}
	return &hlcore.BBO{Bid: result.Bid, Ask: result.Ask}, nil
}

// SendAction dispatches an encoded action. The venue acknowledges receipt
// only; fills surface later through balance reads.
func (c *Client) SendAction(ctx context.Context, action []byte) error {
	req := struct {
		Type   string `json:"type"`
		Action string `json:"action"`
	}{
		Type:   "rawAction",
		Action: hex.EncodeToString(action),
	}
	return c.postJSON(ctx, c.exchangeURL, &req, nil)
}

func (c *Client) TransferToCore(ctx context.Context, usd units.Quantity) error {
	raw, err := usd.RawIn(units.Usd1e18)
	if err != nil {
		return err
	}
	req := struct {
		Type string          `json:"type"`
		Usd  decimal.Decimal `json:"usd"`
	}{
		Type: "cDeposit",
		Usd:  raw,
	}
	return c.postJSON(ctx, c.exchangeURL, &req, nil)
}

func (c *Client) RecallFromCore(ctx context.Context, usd units.Quantity) (units.Quantity, error) {
	raw, err := usd.RawIn(units.Usd1e18)
	if err != nil {
		return units.Zero(units.Usd1e18), err
	}
	req := struct {
		Type string          `json:"type"`
		Usd  decimal.Decimal `json:"usd"`
	}{
		Type: "cWithdraw",
		Usd:  raw,
	}
	var result struct {
		Recalled decimal.Decimal `json:"recalled"`
	}
	if err := c.postJSON(ctx, c.exchangeURL, &req, &result); err != nil {
		return units.Zero(units.Usd1e18), err
	}
	return units.New(result.Recalled, units.Usd1e18), nil
}
