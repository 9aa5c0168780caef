package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/importer"
)

func (c *cli) newImportCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import FILE [FILE...]",
		Short: "Import WhatsApp chat exports (.txt or .zip)",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Chat name (single file only; defaults to the name in the file name)")

	cmd.RunE = c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
		if len(args) > 1 && name != "" {
			return fmt.Errorf("--name applies to a single file")
		}
		if len(args) == 1 {
			return c.importOne(ctx, v, out, cmd.ErrOrStderr(), importer.Request{Path: args[0], Name: name})
		}
		return c.importMany(ctx, v, out, args)
	})
	return cmd
}

func (c *cli) importOne(ctx context.Context, v *app.Vault, out, progress io.Writer, req importer.Request) error {
	res, err := v.Importer.Import(ctx, req, func(pct int) {
		_, _ = fmt.Fprintf(progress, "\rimporting %s: %3d%%", req.Path, pct)
		if pct == 100 {
			_, _ = fmt.Fprintln(progress)
		}
	})
	if err != nil {
		return err
	}
	if c.asJSON {
		return printJSON(out, res)
	}
	_, _ = fmt.Fprintf(out, "Imported %q (%d messages) as %s [%s]\n", res.Name, res.MessageCount, res.ChatID, res.Source)
	return nil
}

func (c *cli) importMany(ctx context.Context, v *app.Vault, out io.Writer, paths []string) error {
	reqs := make([]importer.Request, len(paths))
	for i, p := range paths {
		reqs[i] = importer.Request{Path: p}
	}
	failed := 0
	results := v.Importer.ImportMany(ctx, reqs, func(res importer.Result) {
		if res.Err != nil {
			failed++
		}
		if c.asJSON {
			return
		}
		if res.Err != nil {
			_, _ = fmt.Fprintf(out, "FAIL %s: %v\n", res.Path, res.Err)
			return
		}
		_, _ = fmt.Fprintf(out, "OK   %s: %q (%d messages) as %s [%s]\n", res.Path, res.Name, res.MessageCount, res.ChatID, res.Source)
	})
	if c.asJSON {
		type row struct {
			importer.Result
			Error string `json:"error,omitempty"`
		}
		rows := make([]row, len(results))
		for i, r := range results {
			rows[i] = row{Result: r}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
			}
		}
		if err := printJSON(out, rows); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(paths))
	}
	return nil
}
