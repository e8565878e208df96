package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/matiasleandrokruk/calcatalog/internal/infra/config"
	pkgauth "github.com/matiasleandrokruk/calcatalog/pkg/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin credentials",
	}
	cmd.AddCommand(newTokenHashCmd(), newTokenIssueCmd())
	return cmd
}

func newTokenHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash an admin password read from stdin",
		Long: `Hash an admin password read from the first line of stdin.

Set the printed value as CALCATALOG_ADMIN_PASSWORD_HASH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				if err != nil {
					return usageError{fmt.Errorf("read password: %w", err)}
				}
				return usageError{errors.New("password must not be empty")}
			}
			hash, err := pkgauth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash) //nolint:errcheck
			return nil
		},
	}
}

func newTokenIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue",
		Short: "Issue an admin bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return usageError{err}
			}
			issuer, err := pkgauth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry())
			if err != nil {
				return usageError{err}
			}
			token, expiresAt, err := issuer.Issue("admin", pkgauth.RoleAdmin)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"token": token, "expiresAt": expiresAt})
		},
	}
}
