package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func (c *cli) newChatsCmd() *cobra.Command {
	chatsCmd := &cobra.Command{
		Use:   "chats",
		Short: "Browse imported chats",
	}

	// list
	chatsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chats",
		Args:  cobra.NoArgs,
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, _ []string) error {
			chats, err := v.Coordinator.GetAllChats(ctx)
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(out, chats)
			}
			if len(chats) == 0 {
				_, _ = fmt.Fprintln(out, "No chats yet. Import one with: vault import FILE")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tMESSAGES\tPARTICIPANTS\tFROM\tTO")
			for _, ch := range chats {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					ch.ID, ch.Name, ch.MessageCount, len(ch.Participants), day(ch.StartDate), day(ch.EndDate))
			}
			return tw.Flush()
		}),
	})

	// show
	chatsCmd.AddCommand(&cobra.Command{
		Use:   "show CHAT_ID",
		Short: "Show a chat's details",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			ch, err := v.Coordinator.GetChat(ctx, args[0])
			if err != nil {
				return err
			}
			if c.asJSON {
				summary := *ch
				summary.Messages = nil
				return printJSON(out, summary)
			}
			_, _ = fmt.Fprintf(out, "ID:           %s\n", ch.ID)
			_, _ = fmt.Fprintf(out, "Name:         %s\n", ch.Name)
			_, _ = fmt.Fprintf(out, "Group:        %t\n", ch.IsGroup)
			_, _ = fmt.Fprintf(out, "Participants: %s\n", strings.Join(ch.Participants, ", "))
			_, _ = fmt.Fprintf(out, "Messages:     %d\n", ch.MessageCount)
			_, _ = fmt.Fprintf(out, "From:         %s\n", day(ch.StartDate))
			_, _ = fmt.Fprintf(out, "To:           %s\n", day(ch.EndDate))
			return nil
		}),
	})

	// delete
	chatsCmd.AddCommand(&cobra.Command{
		Use:   "delete CHAT_ID",
		Short: "Delete a chat and its journal entries",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if err := v.Coordinator.DeleteChat(ctx, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Chat deleted: %s\n", args[0])
			return nil
		}),
	})

	// messages
	var date string
	var limit int
	messagesCmd := &cobra.Command{
		Use:   "messages CHAT_ID",
		Short: "Print a chat's messages",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			var (
				msgs []model.Message
				err  error
			)
			if date != "" {
				msgs, err = v.Coordinator.GetMessagesForDate(ctx, args[0], date)
			} else {
				msgs, err = v.Coordinator.GetMessages(ctx, args[0])
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}
			return c.printMessages(out, msgs)
		}),
	}
	messagesCmd.Flags().StringVar(&date, "date", "", "Only messages of this day (YYYY-MM-DD)")
	messagesCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only the last N messages")
	chatsCmd.AddCommand(messagesCmd)

	// search
	chatsCmd.AddCommand(&cobra.Command{
		Use:   "search CHAT_ID QUERY",
		Short: "Find messages containing QUERY (case-insensitive)",
		Args:  cobra.ExactArgs(2),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			msgs, err := v.Coordinator.SearchMessages(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return c.printMessages(out, msgs)
		}),
	})

	// dates
	chatsCmd.AddCommand(&cobra.Command{
		Use:   "dates CHAT_ID",
		Short: "List the days that have messages",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			dates, err := v.Coordinator.GetChatDates(ctx, args[0])
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(out, dates)
			}
			for _, d := range dates {
				_, _ = fmt.Fprintln(out, d)
			}
			return nil
		}),
	})

	return chatsCmd
}

func (c *cli) printMessages(out io.Writer, msgs []model.Message) error {
	if c.asJSON {
		if msgs == nil {
			msgs = []model.Message{}
		}
		return printJSON(out, msgs)
	}
	for _, m := range msgs {
		content := m.Content
		switch {
		case m.IsDeleted:
			content = "<deleted>"
		case m.IsMedia && content == "":
			content = "<" + string(m.Type) + ">"
		}
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.UTC().Format(timeLayout), m.Sender, content)
	}
	return nil
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(model.DateLayout)
}
