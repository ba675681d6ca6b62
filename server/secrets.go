// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/bvk/corevault/telegram"
)

type Secrets struct {
	Telegram *telegram.Secrets `json:"telegram"`

	// AdminPublicKey is a PEM-encoded ECDSA P-256 public key. Admin api
	// requests must carry a JWS signature verifiable with this key. Empty
	// disables the admin endpoints.
	AdminPublicKey string `json:"admin_public_key"`
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (v *Secrets) Check() error {
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return err
		}
	}
	if len(v.AdminPublicKey) != 0 {
		if _, err := ParseAdminPublicKey(v.AdminPublicKey); err != nil {
			return err
		}
	}
	return nil
}

func ParseAdminPublicKey(pemData string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("admin public key is not valid pem")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse admin public key: %w", err)
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("admin public key must be an ecdsa key")
	}
	return ec, nil
}
