// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"fmt"

	"github.com/bvk/corevault/gobs"
)

func TypeNameValue(typename string) (any, error) {
	var v any
	switch typename {
	case "VaultConfig":
		v = new(gobs.VaultConfig)
	case "VaultState":
		v = new(gobs.VaultState)
	case "WithdrawRequest":
		v = new(gobs.WithdrawRequest)
	case "HandlerConfig":
		v = new(gobs.HandlerConfig)
	case "HandlerState":
		v = new(gobs.HandlerState)
	case "KeyValue":
		v = new(gobs.KeyValue)
	case "TelegramState":
		v = new(gobs.TelegramState)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
