package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"telephony-gateway/internal/auth"
	"telephony-gateway/internal/config"
	"telephony-gateway/internal/rbac"
)

type tokenFlags struct {
	operator string
	role     string
	ttl      time.Duration
}

func newTokenCmd() *cobra.Command {
	var f tokenFlags
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator API bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return issueToken(cmd.OutOrStdout(), cfg.Operator, f, time.Now())
		},
	}
	cmd.Flags().StringVar(&f.operator, "operator", "", "operator id (required)")
	cmd.Flags().StringVar(&f.role, "role", rbac.RoleOperator, "role: admin, operator or viewer")
	cmd.Flags().DurationVar(&f.ttl, "ttl", 0, "token lifetime (default OPERATOR_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

func issueToken(w io.Writer, cfg config.OperatorConfig, f tokenFlags, now time.Time) error {
	if !rbac.Known(f.role) {
		return fmt.Errorf("unknown role %q", f.role)
	}
	m, err := auth.NewManager(cfg)
	if err != nil {
		return err
	}
	tok, err := m.Issue(now, f.operator, f.role, f.ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func init() {
	rootCmd.AddCommand(newTokenCmd())
}
