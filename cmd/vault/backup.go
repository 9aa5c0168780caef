package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/localstate"
)

func (c *cli) newBackupCmd() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore the local database",
	}

	var dir string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write every local chat and journal entry to a backup file",
		Args:  cobra.NoArgs,
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, _ []string) error {
			target := dir
			if target == "" {
				d, err := localstate.BackupDir()
				if err != nil {
					return err
				}
				target = d
			}
			path, err := v.Repo.ExportDatabaseToFile(ctx, target)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Backup written: %s\n", path)
			return nil
		}),
	}
	exportCmd.Flags().StringVar(&dir, "dir", "", "Target directory (default ~/.memory-vault/backups)")
	backupCmd.AddCommand(exportCmd)

	var yes bool
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace all local data with a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if !yes {
				return fmt.Errorf("restoring replaces all local chats and journal entries; rerun with --yes")
			}
			if err := v.Repo.ImportDatabaseFromFile(ctx, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Backup restored: %s\n", args[0])
			return nil
		}),
	}
	importCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm replacing local data")
	backupCmd.AddCommand(importCmd)

	return backupCmd
}
