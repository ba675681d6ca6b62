// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"

	"github.com/bvk/corevault/api"
)

func (s *Server) doRebalance(ctx context.Context, req *api.RebalanceRequest) (*api.RebalanceResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st, err := s.handler.Rebalance(ctx, req.MinOuts)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx); err != nil {
		return nil, fmt.Errorf("rebalance done, but could not save state: %w", err)
	}

	return &api.RebalanceResponse{
		Height:       st.Height,
		Equity1e18:   st.Equity1e18,
		Deltas1e18:   st.Deltas1e18,
		OrdersPlaced: st.OrdersPlaced,
	}, nil
}

func (s *Server) doHandlerStatus(ctx context.Context, req *api.HandlerStatusRequest) (*api.HandlerStatusResponse, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st, err := s.handler.Status(ctx)
	if err != nil {
		return nil, err
	}

	resp := &api.HandlerStatusResponse{
		Height:     st.Height,
		Equity1e18: st.Equity1e18,
	}
	for _, p := range st.Positions {
		resp.Positions = append(resp.Positions, &api.PositionItem{
			Asset:        p.Asset,
			BalanceSz:    p.BalanceSz,
			AvailableSz:  p.AvailableSz,
			Px1e8:        p.Px1e8,
			UsdValue1e18: p.UsdValue1e18,
		})
	}
	return resp, nil
}
