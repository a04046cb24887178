// cmd/signin/main.go
//
// Sign-in service – command-line entry point.
//
// Commands
// --------
//
//	signin serve   – HTTP server: /signin page, /api/signin, /metrics.
//	signin login   – sign in from the terminal against the same endpoint.
//
// Both commands share one bootstrap:
//
//  1. Load env vars (jail-wide file → .env fallback).
//  2. Resolve the root dir and load conf/signin.yaml + SIGNIN_* overrides.
//  3. Resolve `vault:` references when VAULT_ADDR is set.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yanizio/signin/internal/config"
	"github.com/yanizio/signin/internal/vault"

	_ "github.com/yanizio/signin/components/auth" // sign-in page + API
)

const serverEnvPath = "/usr/local/etc/signin/signin.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// loadConfig builds the Config, wiring Vault only when it is configured.
func loadConfig(ctx context.Context) (*config.Config, error) {
	var res config.SecretResolver
	if vault.Enabled() {
		cli, err := vault.New()
		if err != nil {
			return nil, err
		}
		res = cli
	}
	return config.Load(ctx, res)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "signin",
		Short:         "Email/password sign-in form backed by a remote auth endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			loadEnv()
		},
	}
	root.AddCommand(newServeCmd(), newLoginCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "signin:", err)
		os.Exit(1)
	}
}
