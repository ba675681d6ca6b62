// Copyright (c) 2025 BVK Chaitanya

package api

import "github.com/shopspring/decimal"

// SignedRequest wraps an admin operation's JSON payload in a compact JWS
// signature. The server verifies the signature against the configured
// admin public key before decoding the payload into the operation's
// request type.
type SignedRequest struct {
	JWS string
}

const PausePath = "/admin/pause"

type PauseRequest struct {
	Paused bool
}

type PauseResponse struct {
	Paused bool
}

const SetFeesPath = "/admin/set-fees"

type FeeTier struct {
	MinAmount1e18 decimal.Decimal
	FeeBps        uint32
}

type SetFeesRequest struct {
	DepositFeeBps  uint32
	WithdrawFeeBps uint32

	WithdrawFeeTiers []FeeTier
}

type SetFeesResponse struct {
}

const SetGuardPath = "/admin/set-guard"

type SetGuardRequest struct {
	MaxDeviationBps uint32
}

type SetGuardResponse struct {
}

const SetEpochPath = "/admin/set-epoch"

type SetEpochRequest struct {
	MaxNotional1e18 decimal.Decimal
	EpochBlocks     uint64
}

type SetEpochResponse struct {
}

const SetRebalanceParamsPath = "/admin/set-rebalance-params"

type SetRebalanceParamsRequest struct {
	ReserveBps  uint32
	DeadbandBps uint32
	SlippageBps uint32
}

type SetRebalanceParamsResponse struct {
}

const SetAutoDeployPath = "/admin/set-auto-deploy"

type SetAutoDeployRequest struct {
	AutoDeployBps uint32
}

type SetAutoDeployResponse struct {
}

const SetMinDepositPath = "/admin/set-min-deposit"

type SetMinDepositRequest struct {
	MinDeposit1e18 decimal.Decimal
}

type SetMinDepositResponse struct {
}
