// Copyright (c) 2025 BVK Chaitanya

// Package admin implements the client subcommands for the signed admin
// endpoints. Every command signs its request payload with the operator's
// private key file; the daemon verifies the signature against the public
// key in its secrets file.
package admin

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bvk/corevault/api"
	"github.com/bvk/corevault/subcmds/cmdutil"
)

// KeyFlags carries the signing key file flag shared by all admin
// subcommands.
type KeyFlags struct {
	keyPath string
}

func (kf *KeyFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&kf.keyPath, "key-file", "", "path to the admin private key file")
}

func (kf *KeyFlags) LoadKey() (*ecdsa.PrivateKey, error) {
	if len(kf.keyPath) == 0 {
		kf.keyPath = filepath.Join(os.Getenv("HOME"), ".corevault", "admin-key.pem")
	}
	data, err := os.ReadFile(kf.keyPath)
	if err != nil {
		return nil, fmt.Errorf("could not read key file %q: %w", kf.keyPath, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("key file %q holds no PEM block", kf.keyPath)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse key file %q: %w", kf.keyPath, err)
	}
	return key, nil
}

// send signs the request payload and posts it to the given admin endpoint.
func send[RESP, REQ any](ctx context.Context, cf *cmdutil.ClientFlags, kf *KeyFlags, subpath string, req *REQ) (*RESP, error) {
	key, err := kf.LoadKey()
	if err != nil {
		return nil, err
	}
	signed, err := api.SignRequest(key, req)
	if err != nil {
		return nil, fmt.Errorf("could not sign request: %w", err)
	}
	return cmdutil.Post[RESP](ctx, cf, subpath, signed)
}
