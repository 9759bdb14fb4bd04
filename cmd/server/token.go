package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpshade/wakatime-mcp/internal/auth"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the MCP endpoint",
	Long: `Signs a token with MCP_AUTH_SECRET. Clients send it as
"Authorization: Bearer <token>". A zero --ttl issues a token without expiry.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToken(cmd.OutOrStdout(), cfg.Server.AuthSecret, tokenSubject, tokenTTL)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Caller identity stored in the token (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 90*24*time.Hour, "Token lifetime, 0 for no expiry")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(out io.Writer, secret, subject string, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("MCP_AUTH_SECRET is not set: %w", auth.ErrNoSecret)
	}
	if ttl < 0 {
		return fmt.Errorf("--ttl must not be negative, got %s", ttl)
	}
	token, err := auth.Issue([]byte(secret), subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
