// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bvk/corevault/epoch"
	"github.com/bvk/corevault/handler"
	"github.com/bvk/corevault/vault"
)

type checker interface {
	Check() error
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, vault.ErrPaused):
		return http.StatusLocked
	case errors.Is(err, vault.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrBelowMinNotional):
		return http.StatusBadRequest
	case errors.Is(err, epoch.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, handler.ErrNoAccount):
		return http.StatusFailedDependency
	case errors.Is(err, handler.ErrSlippage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func postJSONHandler[REQ, RESP any](fn func(context.Context, *REQ) (*RESP, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method must be POST", http.StatusMethodNotAllowed)
			return
		}

		req := new(REQ)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if c, ok := any(req).(checker); ok {
			if err := c.Check(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}

		w.Header().Set("content-type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
