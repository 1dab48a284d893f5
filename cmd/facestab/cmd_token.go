package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"Facestab/internal/auth"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Server.TokenKey == "" {
			return fmt.Errorf("no token key configured (set server.token_key or TOKEN_KEY)")
		}
		a := &auth.TokenAuth{Key: []byte(cfg.Server.TokenKey)}
		tok, err := a.Issue(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
