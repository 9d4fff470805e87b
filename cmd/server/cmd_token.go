package main

import (
	"fmt"

	"github.com/spf13/cobra"

	jwttoken "casekeeper/internal/jwt_token"
)

var issueTokenFlags struct {
	userName string
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Print a bearer token for an existing user",
	RunE:  runIssueToken,
}

func init() {
	f := issueTokenCmd.Flags()
	f.StringVar(&issueTokenFlags.userName, "user", "", "User name (required)")
	_ = issueTokenCmd.MarkFlagRequired("user")
}

func runIssueToken(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	user, err := a.users.FindByUserName(ctx, issueTokenFlags.userName)
	if err != nil {
		return fmt.Errorf("look up %s: %w", issueTokenFlags.userName, err)
	}
	token, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer).
		GenerateAccessToken(user.ID, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
