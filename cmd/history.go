package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ai-session-insights-service/internal/config"
	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/store/sqlite"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit     int
		sessionID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored sessions, or show one session's insights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			store, err := sqlite.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if sessionID != "" {
				rec, err := store.GetSession(ctx, sessionID)
				if err != nil {
					return err
				}
				items, err := store.SessionInsights(ctx, sessionID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, struct {
						models.SessionRecord
						Items []models.Insight `json:"items"`
					}{rec, items})
				}
				return printSession(out, rec, items)
			}

			recs, err := store.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, recs)
			}
			return printSessions(out, recs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions to list")
	cmd.Flags().StringVar(&sessionID, "session", "", "show a single session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSessions(out io.Writer, recs []models.SessionRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tINSIGHTS\tREASON")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			rec.ID, rec.StartedAt.Local().Format(time.DateTime), duration(rec), rec.Insights, rec.EndReason)
	}
	return tw.Flush()
}

func printSession(out io.Writer, rec models.SessionRecord, items []models.Insight) error {
	fmt.Fprintf(out, "Session %s (%s, %s)\n\n", rec.ID, rec.StartedAt.Local().Format(time.DateTime), duration(rec))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSENTIMENT\tTEXT\tADVICE")
	for _, in := range items {
		fmt.Fprintf(tw, "%d\t%s (%.2f)\t%s\t%s\n", in.Sequence, in.Sentiment.Label, in.Sentiment.Score, in.Text, in.Advice)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if rec.Summary != nil {
		fmt.Fprintf(out, "\nSummary: %s\n", rec.Summary.Summary)
		for _, p := range rec.Summary.KeyPoints {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		if len(rec.Summary.ActionItems) > 0 {
			fmt.Fprintln(out, "Action items:")
			for _, a := range rec.Summary.ActionItems {
				fmt.Fprintf(out, "  - %s\n", a)
			}
		}
	}
	return nil
}

func duration(rec models.SessionRecord) string {
	if rec.EndedAt == nil {
		return "open"
	}
	return rec.EndedAt.Sub(rec.StartedAt).Round(time.Second).String()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
