package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/model"
)

func (c *cli) newJournalCmd() *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Keep a diary about your chats, one entry per chat and day",
	}

	var text, emotion, audioURL string
	var intensity int
	var tags []string
	addCmd := &cobra.Command{
		Use:   "add CHAT_ID DATE",
		Short: "Write (or replace) the entry for a chat on DATE (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if _, err := v.Coordinator.GetChat(ctx, args[0]); err != nil {
				return err
			}
			entry := &model.JournalEntry{
				ChatID:       args[0],
				Date:         args[1],
				Text:         text,
				Tags:         tags,
				AudioNoteURL: audioURL,
			}
			if emotion != "" {
				entry.Emotion = &model.Emotion{Primary: emotion, Intensity: intensity}
			}
			id, err := v.Coordinator.SaveJournalEntry(ctx, entry)
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(out, entry)
			}
			_, _ = fmt.Fprintf(out, "Journal entry saved: %s (%s)\n", id, entry.Date)
			return nil
		}),
	}
	addCmd.Flags().StringVarP(&text, "text", "t", "", "Entry text")
	addCmd.Flags().StringVar(&emotion, "emotion", "", "Primary emotion")
	addCmd.Flags().IntVar(&intensity, "intensity", 3, "Emotion intensity (1-5)")
	addCmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	addCmd.Flags().StringVar(&audioURL, "audio", "", "Audio note URL")
	journalCmd.AddCommand(addCmd)

	journalCmd.AddCommand(&cobra.Command{
		Use:   "show CHAT_ID DATE",
		Short: "Show the entry for a chat on DATE",
		Args:  cobra.ExactArgs(2),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			entry, err := v.Coordinator.GetJournalEntryForDate(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if entry == nil {
				return &model.NotFoundError{Kind: "journal entry", ID: args[0] + "/" + args[1]}
			}
			if c.asJSON {
				return printJSON(out, entry)
			}
			printEntry(out, *entry)
			return nil
		}),
	})

	journalCmd.AddCommand(&cobra.Command{
		Use:   "list CHAT_ID",
		Short: "List a chat's entries by date",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			entries, err := v.Coordinator.GetJournalEntriesForChat(ctx, args[0])
			if err != nil {
				return err
			}
			if c.asJSON {
				if entries == nil {
					entries = []model.JournalEntry{}
				}
				return printJSON(out, entries)
			}
			for _, e := range entries {
				printEntry(out, e)
			}
			return nil
		}),
	})

	journalCmd.AddCommand(&cobra.Command{
		Use:   "delete ENTRY_ID",
		Short: "Delete a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if err := v.Coordinator.DeleteJournalEntry(ctx, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Journal entry deleted: %s\n", args[0])
			return nil
		}),
	})

	return journalCmd
}

func printEntry(out io.Writer, e model.JournalEntry) {
	_, _ = fmt.Fprintf(out, "%s  %s", e.Date, e.ID)
	if e.Emotion != nil {
		_, _ = fmt.Fprintf(out, "  [%s %d/5]", e.Emotion.Primary, e.Emotion.Intensity)
	}
	if len(e.Tags) > 0 {
		_, _ = fmt.Fprintf(out, "  #%s", strings.Join(e.Tags, " #"))
	}
	_, _ = fmt.Fprintln(out)
	if e.Text != "" {
		_, _ = fmt.Fprintf(out, "  %s\n", e.Text)
	}
}
