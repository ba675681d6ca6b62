// Copyright (c) 2025 BVK Chaitanya

package server

import "time"

type Options struct {
	// RebalanceInterval is the period of the background rebalance loop.
	// Zero disables it; rebalances then only happen through the api or on
	// deposits.
	RebalanceInterval time.Duration

	// SettleInterval is the period of the background withdrawal settlement
	// loop. Zero disables it; settlements then only happen through the api.
	SettleInterval time.Duration

	NoRebalance bool
}

func (v *Options) setDefaults() {
	if v.RebalanceInterval == 0 && !v.NoRebalance {
		v.RebalanceInterval = time.Minute
	}
}

func (v *Options) Check() error {
	return nil
}
