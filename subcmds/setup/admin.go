// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bvk/corevault/cli"
	"github.com/bvk/corevault/server"
)

type Admin struct {
	dataDir string
	keyPath string

	force bool
}

func (c *Admin) Synopsis() string {
	return "Setup generates the admin api signing key pair"
}

func (c *Admin) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("admin", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.keyPath, "key-file", "", "path for the private key file")
	fset.BoolVar(&c.force, "force", false, "when true, replaces an existing key pair")
	return fset, cli.CmdFunc(c.run)
}

func (c *Admin) CommandHelp() string {
	return `

Command "admin" generates an ECDSA P-256 key pair for the admin api. The
private key is written to a PEM file and the public key is recorded in the
secrets file. The daemon verifies admin requests against the public key;
the admin subcommands sign requests with the private key file.

  $ corevault setup admin
  $ corevault admin pause --key-file=$HOME/.corevault/admin-key.pem

`
}

func (c *Admin) run(ctx context.Context, args []string) error {
	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".corevault")
	}
	if err := os.MkdirAll(c.dataDir, 0700); err != nil {
		return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}
	if len(c.keyPath) == 0 {
		c.keyPath = filepath.Join(dataDir, "admin-key.pem")
	}
	if _, err := os.Stat(c.keyPath); err == nil && !c.force {
		return fmt.Errorf("key file %q already exists (use -force to replace)", c.keyPath)
	}

	secretsPath := filepath.Join(dataDir, "secrets.json")
	secrets, err := server.SecretsFromFile(secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if secrets == nil {
		secrets = &server.Secrets{}
	}
	if len(secrets.AdminPublicKey) != 0 && !c.force {
		return fmt.Errorf("secrets file %q already holds an admin key (use -force to replace)", secretsPath)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("could not generate key pair: %w", err)
	}
	private, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	public, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: private})
	if err := os.WriteFile(c.keyPath, keyPEM, os.FileMode(0600)); err != nil {
		return fmt.Errorf("could not write private key file: %w", err)
	}

	secrets.AdminPublicKey = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: public}))
	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsPath, js, os.FileMode(0600)); err != nil {
		return fmt.Errorf("could not write secrets file: %w", err)
	}

	fmt.Printf("wrote private key to %s and public key to %s\n", c.keyPath, secretsPath)
	return nil
}
