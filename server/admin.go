// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/gobs"
)

func verifySigned[T any](s *Server, sr *api.SignedRequest) (*T, error) {
	if s.adminKey == nil {
		return nil, fmt.Errorf("admin endpoints are not configured")
	}
	req := new(T)
	if err := api.VerifyRequest(s.adminKey, sr, req); err != nil {
		return nil, fmt.Errorf("could not verify admin request: %w", err)
	}
	if c, ok := any(req).(checker); ok {
		if err := c.Check(); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (s *Server) doPause(ctx context.Context, sr *api.SignedRequest) (*api.PauseResponse, error) {
	req, err := verifySigned[api.PauseRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.vault.SetPaused(req.Paused)
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.PauseResponse{Paused: req.Paused}, nil
}

func (s *Server) doSetFees(ctx context.Context, sr *api.SignedRequest) (*api.SetFeesResponse, error) {
	req, err := verifySigned[api.SetFeesRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var tiers []gobs.WithdrawFeeTier
	for _, t := range req.WithdrawFeeTiers {
		tiers = append(tiers, gobs.WithdrawFeeTier{MinAmount1e18: t.MinAmount1e18, FeeBps: t.FeeBps})
	}
	if err := s.vault.SetFees(req.DepositFeeBps, req.WithdrawFeeBps, tiers); err != nil {
		return nil, err
	}
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.SetFeesResponse{}, nil
}

func (s *Server) doSetGuard(ctx context.Context, sr *api.SignedRequest) (*api.SetGuardResponse, error) {
	req, err := verifySigned[api.SetGuardRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.handler.SetGuardParams(ctx, req.MaxDeviationBps)
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.SetGuardResponse{}, nil
}

func (s *Server) doSetEpoch(ctx context.Context, sr *api.SignedRequest) (*api.SetEpochResponse, error) {
	req, err := verifySigned[api.SetEpochRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.handler.SetEpochParams(ctx, req.MaxNotional1e18, req.EpochBlocks)
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.SetEpochResponse{}, nil
}

func (s *Server) doSetRebalanceParams(ctx context.Context, sr *api.SignedRequest) (*api.SetRebalanceParamsResponse, error) {
	req, err := verifySigned[api.SetRebalanceParamsRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.handler.SetRebalanceParams(ctx, req.ReserveBps, req.DeadbandBps, req.SlippageBps); err != nil {
		return nil, err
	}
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.SetRebalanceParamsResponse{}, nil
}

func (s *Server) doSetAutoDeploy(ctx context.Context, sr *api.SignedRequest) (*api.SetAutoDeployResponse, error) {
	req, err := verifySigned[api.SetAutoDeployRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.vault.SetAutoDeployBps(req.AutoDeployBps); err != nil {
		return nil, err
	}
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.SetAutoDeployResponse{}, nil
}

func (s *Server) doSetMinDeposit(ctx context.Context, sr *api.SignedRequest) (*api.SetMinDepositResponse, error) {
	req, err := verifySigned[api.SetMinDepositRequest](s, sr)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.vault.SetMinDeposit(req.MinDeposit1e18); err != nil {
		return nil, err
	}
	if err := s.saveAll(ctx); err != nil {
		return nil, err
	}
	return &api.SetMinDepositResponse{}, nil
}
