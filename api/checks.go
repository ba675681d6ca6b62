// Copyright (c) 2025 BVK Chaitanya

package api

import "fmt"

func (r *DepositRequest) Check() error {
	if len(r.User) == 0 {
		return fmt.Errorf("user cannot be empty")
	}
	if r.Amount1e18.Sign() <= 0 {
		return fmt.Errorf("deposit amount must be positive")
	}
	return nil
}

func (r *WithdrawRequest) Check() error {
	if len(r.User) == 0 {
		return fmt.Errorf("user cannot be empty")
	}
	if r.Shares.Sign() <= 0 {
		return fmt.Errorf("share amount must be positive")
	}
	return nil
}

func (r *FeeQuoteRequest) Check() error {
	if r.Amount1e18.IsNegative() {
		return fmt.Errorf("amount cannot be negative")
	}
	return nil
}

func (r *SharesRequest) Check() error {
	if len(r.User) == 0 {
		return fmt.Errorf("user cannot be empty")
	}
	return nil
}

func (r *RebalanceRequest) Check() error {
	for i, m := range r.MinOuts {
		if m.IsNegative() {
			return fmt.Errorf("min-out %d cannot be negative", i)
		}
	}
	return nil
}

func (r *SetFeesRequest) Check() error {
	if r.DepositFeeBps > 10000 || r.WithdrawFeeBps > 10000 {
		return fmt.Errorf("fee bps out of range")
	}
	for _, tier := range r.WithdrawFeeTiers {
		if tier.FeeBps > 10000 {
			return fmt.Errorf("tier fee bps out of range")
		}
		if tier.MinAmount1e18.IsNegative() {
			return fmt.Errorf("tier min amount cannot be negative")
		}
	}
	return nil
}

func (r *SetGuardRequest) Check() error {
	if r.MaxDeviationBps > 10000 {
		return fmt.Errorf("deviation bps out of range")
	}
	return nil
}

func (r *SetEpochRequest) Check() error {
	if r.MaxNotional1e18.IsNegative() {
		return fmt.Errorf("epoch notional cap cannot be negative")
	}
	return nil
}

func (r *SetRebalanceParamsRequest) Check() error {
	if r.ReserveBps > 10000 || r.DeadbandBps > 10000 || r.SlippageBps > 10000 {
		return fmt.Errorf("bps parameter out of range")
	}
	return nil
}

func (r *SetAutoDeployRequest) Check() error {
	if r.AutoDeployBps > 10000 {
		return fmt.Errorf("auto-deploy bps out of range")
	}
	return nil
}

func (r *SetMinDepositRequest) Check() error {
	if r.MinDeposit1e18.IsNegative() {
		return fmt.Errorf("min deposit cannot be negative")
	}
	return nil
}
