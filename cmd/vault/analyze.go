package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memoryvault/memory-vault/internal/analysis"
	"github.com/memoryvault/memory-vault/internal/app"
	"github.com/memoryvault/memory-vault/internal/model"
	"github.com/memoryvault/memory-vault/internal/remote"
)

func (c *cli) newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Statistics, word clouds, activity and sentiment for a chat",
	}

	var statsLocal bool
	statsCmd := &cobra.Command{
		Use:   "stats CHAT_ID",
		Short: "Message statistics from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if statsLocal {
				msgs, err := v.Coordinator.GetMessages(ctx, args[0])
				if err != nil {
					return err
				}
				st := analysis.ComputeStatistics(args[0], msgs)
				if c.asJSON {
					return printJSON(out, localResult{Source: sourceLocal, Result: st})
				}
				_, _ = fmt.Fprintln(out, localBanner)
				printStatistics(out, &st)
				return nil
			}
			st, err := v.Coordinator.GetStatistics(ctx, args[0])
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(out, st)
			}
			printStatistics(out, st)
			return nil
		}),
	}
	statsCmd.Flags().BoolVar(&statsLocal, "local", false, "Compute from the stored messages instead of asking the backend")
	analyzeCmd.AddCommand(statsCmd)

	var wordLimit, minLength int
	wordsCmd := &cobra.Command{
		Use:   "words CHAT_ID",
		Short: "Most common words",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			msgs, err := v.Coordinator.GetMessages(ctx, args[0])
			if err != nil {
				return err
			}
			return c.printWords(out, analysis.GetMostCommonWords(msgs, wordLimit, minLength))
		}),
	}
	wordsCmd.Flags().IntVarP(&wordLimit, "limit", "n", 20, "Number of words")
	wordsCmd.Flags().IntVar(&minLength, "min-length", analysis.DefaultMinWordLength, "Shortest word counted")
	analyzeCmd.AddCommand(wordsCmd)

	var percentile float64
	activeCmd := &cobra.Command{
		Use:   "active CHAT_ID",
		Short: "Days with unusually many messages",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if percentile < 0 || percentile > 1 {
				return model.NewValidationError("percentile", "must be between 0 and 1")
			}
			msgs, err := v.Coordinator.GetMessages(ctx, args[0])
			if err != nil {
				return err
			}
			days := analysis.GetHighActivityDays(msgs, percentile)
			if c.asJSON {
				if days == nil {
					days = []string{}
				}
				return printJSON(out, days)
			}
			groups := analysis.GroupMessagesByDate(msgs)
			for _, d := range days {
				_, _ = fmt.Fprintf(out, "%s  %d messages\n", d, len(groups[d]))
			}
			return nil
		}),
	}
	activeCmd.Flags().Float64Var(&percentile, "percentile", 0.9, "Threshold percentile (0-1)")
	analyzeCmd.AddCommand(activeCmd)

	var reanalyze bool
	sentimentCmd := &cobra.Command{
		Use:   "sentiment CHAT_ID",
		Short: "Score message sentiment on the backend",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			res, err := v.Coordinator.AnalyzeSentiment(ctx, args[0], reanalyze)
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(out, res)
			}
			printSentiment(out, res)
			return nil
		}),
	}
	sentimentCmd.Flags().BoolVar(&reanalyze, "reanalyze", false, "Rescore messages that already have a score")
	analyzeCmd.AddCommand(sentimentCmd)

	var keywordLimit int
	var keywordsLocal bool
	keywordsCmd := &cobra.Command{
		Use:   "keywords CHAT_ID",
		Short: "Top keywords from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if keywordsLocal {
				msgs, err := v.Coordinator.GetMessages(ctx, args[0])
				if err != nil {
					return err
				}
				words, total := analysis.ExtractKeywords(msgs, keywordLimit)
				kw := remote.KeywordsResponse{ChatID: args[0], Keywords: words, TotalWords: total}
				if c.asJSON {
					return printJSON(out, localResult{Source: sourceLocal, Result: kw})
				}
				_, _ = fmt.Fprintln(out, localBanner)
				return c.printWords(out, kw.Keywords)
			}
			kw, err := v.Coordinator.GetKeywords(ctx, args[0], keywordLimit)
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(out, kw)
			}
			return c.printWords(out, kw.Keywords)
		}),
	}
	keywordsCmd.Flags().IntVarP(&keywordLimit, "limit", "n", 20, "Number of keywords")
	keywordsCmd.Flags().BoolVar(&keywordsLocal, "local", false, "Compute from the stored messages instead of asking the backend")
	analyzeCmd.AddCommand(keywordsCmd)

	var format, outPath string
	exportCmd := &cobra.Command{
		Use:   "export CHAT_ID",
		Short: "Download a chat export from the backend (json or zip)",
		Args:  cobra.ExactArgs(1),
		RunE: c.withVault(func(ctx context.Context, v *app.Vault, out io.Writer, args []string) error {
			if format != "json" && format != "zip" {
				return model.NewValidationError("format", "must be json or zip")
			}
			body, err := v.Coordinator.ExportChat(ctx, args[0], format)
			if err != nil {
				return err
			}
			target := outPath
			if target == "" {
				target = args[0] + "." + format
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(target, body, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_, _ = fmt.Fprintf(out, "Export written: %s (%d bytes)\n", target, len(body))
			return nil
		}),
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json or zip")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default CHAT_ID.FORMAT)")
	analyzeCmd.AddCommand(exportCmd)

	return analyzeCmd
}

const (
	sourceLocal = "local"
	localBanner = "(computed locally from stored messages)"
)

// localResult tags --local output so it is never mistaken for backend data.
type localResult struct {
	Source string `json:"source"`
	Result any    `json:"result"`
}

func (c *cli) printWords(out io.Writer, words []analysis.WordCount) error {
	if c.asJSON {
		if words == nil {
			words = []analysis.WordCount{}
		}
		return printJSON(out, words)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, w := range words {
		_, _ = fmt.Fprintf(tw, "%s\t%d\n", w.Word, w.Count)
	}
	return tw.Flush()
}

func printStatistics(out io.Writer, st *analysis.ChatStatistics) {
	_, _ = fmt.Fprintf(out, "Messages:      %d (%d media, %d deleted)\n", st.TotalMessages, st.MediaMessages, st.DeletedMessages)
	_, _ = fmt.Fprintf(out, "Range:         %s .. %s\n", st.FirstMessage, st.LastMessage)
	_, _ = fmt.Fprintf(out, "Active days:   %d (%.1f messages/day)\n", st.DaysActive, st.AveragePerDay)
	if st.BusiestDay != "" {
		_, _ = fmt.Fprintf(out, "Busiest day:   %s (%d)\n", st.BusiestDay, st.BusiestDayCount)
	}
	_, _ = fmt.Fprintf(out, "Busiest hour:  %02d:00\n", st.BusiestHour)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SENDER\tMESSAGES\tSHARE")
	for _, u := range st.ByUser {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", u.Sender, u.Count, u.Percentage)
	}
	_ = tw.Flush()
}

func printSentiment(out io.Writer, res *remote.SentimentResponse) {
	_, _ = fmt.Fprintf(out, "Overall: %s %s (%.3f), %d messages scored\n",
		analysis.GetSentimentEmoji(res.OverallScore), res.OverallLabel, res.OverallScore, res.Analyzed)
	for _, d := range res.Daily {
		_, _ = fmt.Fprintf(out, "%s  %s %-8s %6.3f  (%d)\n",
			d.Date, analysis.GetSentimentEmoji(d.AverageScore), d.Label, d.AverageScore, d.MessageCount)
	}
}
