// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"

	"github.com/bvk/corevault/api"
)

func (s *Server) doDeposit(ctx context.Context, req *api.DepositRequest) (*api.DepositResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	shares, err := s.vault.Deposit(ctx, req.User, req.Amount1e18)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx); err != nil {
		return nil, fmt.Errorf("deposit accepted, but could not save state: %w", err)
	}

	pps, err := s.vault.PPS1e18(ctx)
	if err != nil {
		return nil, err
	}
	return &api.DepositResponse{Shares: shares, PPS1e18: pps}, nil
}

func (s *Server) doWithdraw(ctx context.Context, req *api.WithdrawRequest) (*api.WithdrawResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	wreq, err := s.vault.Withdraw(ctx, req.User, req.Shares)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx); err != nil {
		return nil, fmt.Errorf("withdraw queued, but could not save state: %w", err)
	}

	return &api.WithdrawResponse{
		ID:        wreq.ID,
		Gross1e18: wreq.GrossUsd1e18,
		FeeBps:    wreq.FeeBpsSnapshot,
	}, nil
}

func (s *Server) doSettle(ctx context.Context, req *api.SettleRequest) (*api.SettleResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	net, err := s.vault.Settle(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx); err != nil {
		return nil, fmt.Errorf("withdraw settled, but could not save state: %w", err)
	}
	return &api.SettleResponse{Net1e18: net}, nil
}

func (s *Server) doVaultStatus(ctx context.Context, req *api.VaultStatusRequest) (*api.VaultStatusResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	nav, err := s.vault.NAV1e18(ctx)
	if err != nil {
		return nil, err
	}
	pps, err := s.vault.PPS1e18(ctx)
	if err != nil {
		return nil, err
	}

	resp := &api.VaultStatusResponse{
		NAV1e18:     nav,
		PPS1e18:     pps,
		TotalShares: s.vault.TotalShares(),
		Cash1e18:    s.vault.Cash1e18(),
		Pending1e18: s.vault.Pending1e18(),
		Paused:      s.vault.Config().Paused,
	}
	for _, wreq := range s.vault.PendingWithdraws() {
		resp.PendingWithdraws = append(resp.PendingWithdraws, &api.WithdrawItem{
			ID:         wreq.ID,
			User:       wreq.User,
			Shares:     wreq.Shares,
			Gross1e18:  wreq.GrossUsd1e18,
			FeeBps:     wreq.FeeBpsSnapshot,
			CreateTime: wreq.CreateTime,
		})
	}
	return resp, nil
}

func (s *Server) doFeeQuote(ctx context.Context, req *api.FeeQuoteRequest) (*api.FeeQuoteResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return &api.FeeQuoteResponse{FeeBps: s.vault.WithdrawFeeBpsForAmount(req.Amount1e18)}, nil
}

func (s *Server) doShares(ctx context.Context, req *api.SharesRequest) (*api.SharesResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return &api.SharesResponse{Shares: s.vault.SharesOf(req.User)}, nil
}
