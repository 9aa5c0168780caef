// Command vault imports WhatsApp chat exports into a local-first store and
// browses, journals, backs up and analyzes them. A remote backend is used
// when VAULT_BACKEND_URL is set and reachable.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/config"
	"github.com/memoryvault/memory-vault/internal/logger"
)

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	cfg        *config.Config
	log        zerolog.Logger
	debug      bool
	asJSON     bool
	backendURL string
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "vault",
		Short:         "Memory Vault: keep and explore your WhatsApp chats",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend-url") {
				cfg.BackendURL = strings.TrimRight(strings.TrimSpace(c.backendURL), "/")
			}
			if c.debug {
				cfg.Debug = true
			}
			c.cfg = cfg
			c.log = logger.NewConsole("vault", cmd.ErrOrStderr(), cfg.Level())
			c.log.Debug().Str("backend_url", cfg.BackendURL).Str("db_driver", cfg.DBDriver).Msg("vault starting")
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&c.debug, "debug", "d", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&c.backendURL, "backend-url", "", "Backend base URL (overrides VAULT_BACKEND_URL; empty for local-only)")

	rootCmd.AddCommand(c.newImportCmd())
	rootCmd.AddCommand(c.newChatsCmd())
	rootCmd.AddCommand(c.newJournalCmd())
	rootCmd.AddCommand(c.newBackupCmd())
	rootCmd.AddCommand(c.newAnalyzeCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newRetryCmd())
	rootCmd.AddCommand(c.newTokenCmd())
	return rootCmd
}

// runFunc is a subcommand body with an open vault.
type runFunc func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error

// withVault opens the vault for the duration of one command.
func (c *cli) withVault(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		v, err := app.Open(ctx, c.cfg, c.log)
		if err != nil {
			return err
		}
		defer func() {
			if err := v.Close(); err != nil {
				c.log.Warn().Err(err).Msg("close vault")
			}
		}()
		return fn(ctx, v, cmd.OutOrStdout(), args)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
