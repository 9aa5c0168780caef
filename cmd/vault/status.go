package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/connectivity"
	"github.com/memoryvault/memory-vault/internal/localstate"
)

type statusReport struct {
	Backend      string `json:"backend"`
	Connectivity string `json:"connectivity"`
	Storage      string `json:"storage"`
	LocalChats   int    `json:"localChats"`
	TokenStored  bool   `json:"tokenStored"`
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend connectivity and local storage",
		Args:  cobra.NoArgs,
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, _ []string) error {
			rep := statusReport{
				Backend:      c.cfg.BackendURL,
				Connectivity: v.Coordinator.RetryConnection(ctx).String(),
				Storage:      c.cfg.DBDriver,
			}
			if rep.Backend == "" {
				rep.Backend = "none (local only)"
			}
			if c.cfg.DBDriver == "sqlite" {
				rep.Storage += " " + c.cfg.SQLitePath
			}
			chats, err := v.Repo.GetAllChats(ctx)
			if err != nil {
				return err
			}
			rep.LocalChats = len(chats)
			tok, err := localstate.LoadToken()
			if err != nil {
				return err
			}
			rep.TokenStored = tok != ""

			if c.asJSON {
				return printJSON(out, rep)
			}
			_, _ = fmt.Fprintf(out, "Backend:      %s\n", rep.Backend)
			_, _ = fmt.Fprintf(out, "Connectivity: %s\n", rep.Connectivity)
			_, _ = fmt.Fprintf(out, "Storage:      %s\n", rep.Storage)
			_, _ = fmt.Fprintf(out, "Local chats:  %d\n", rep.LocalChats)
			_, _ = fmt.Fprintf(out, "Token stored: %t\n", rep.TokenStored)
			return nil
		}),
	}
}

func (c *cli) newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Probe the backend again",
		Args:  cobra.NoArgs,
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, _ []string) error {
			st := v.Coordinator.RetryConnection(ctx)
			_, _ = fmt.Fprintf(out, "Backend is %s\n", st)
			if st != connectivity.Up {
				return fmt.Errorf("backend unavailable; working from local storage")
			}
			return nil
		}),
	}
}

// newTokenCmd stores the bearer token sent to the backend. Obtaining one is
// up to the backend operator.
func (c *cli) newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored backend session token",
	}
	tokenCmd.AddCommand(&cobra.Command{
		Use:   "set TOKEN",
		Short: "Store a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := strings.TrimSpace(args[0])
			if tok == "" {
				return fmt.Errorf("token is empty")
			}
			if err := localstate.SaveToken(tok); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Token stored")
			return nil
		},
	})
	tokenCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := localstate.ClearToken(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Token cleared")
			return nil
		},
	})
	return tokenCmd
}
