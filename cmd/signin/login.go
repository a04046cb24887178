// cmd/signin/login.go
//
// `signin login` – terminal sign-in.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yanizio/signin/internal/authclient"
	"github.com/yanizio/signin/internal/logger"
	"github.com/yanizio/signin/internal/signin"
	"github.com/yanizio/signin/internal/terminal"
)

func newLoginCmd() *cobra.Command {
	var (
		endpoint     string
		email        string
		showPassword bool
		attempts     int
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if endpoint != "" {
				_ = os.Setenv("SIGNIN_AUTH__ENDPOINT", endpoint)
			}
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			log := logger.Console(cfg.Log.Level)
			defer func() { _ = log.Sync() }()

			cli, err := authclient.New(cfg.Auth.Endpoint, authclient.WithTimeout(cfg.Auth.Timeout))
			if err != nil {
				return err
			}

			ctrl := signin.NewController(cli, log)
			defer ctrl.Close()
			if email != "" {
				ctrl.UpdateField(signin.FieldEmail, email)
			}
			if showPassword {
				ctrl.ToggleVisibility()
			}

			p := terminal.New(os.Stdin, cmd.OutOrStdout(), terminal.WithMaxAttempts(attempts))
			_, err = p.Run(cmd.Context(), ctrl)
			return err
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "auth endpoint base URL (overrides auth.endpoint)")
	cmd.Flags().StringVar(&email, "email", "", "pre-fill the email prompt")
	cmd.Flags().BoolVar(&showPassword, "show-password", false, "echo the password while typing")
	cmd.Flags().IntVar(&attempts, "attempts", terminal.DefaultMaxAttempts, "maximum submissions")
	return cmd
}
