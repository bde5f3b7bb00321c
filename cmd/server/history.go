package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Crazyka51/AudioCleaner/internal/history"
	"github.com/Crazyka51/AudioCleaner/internal/models"
)

// emptyHistory stands in when no history database is configured.
type emptyHistory struct{}

func (emptyHistory) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	return []models.HistoryEntry{}, nil
}

func (emptyHistory) Stats(ctx context.Context) (models.HistoryStats, error) {
	return models.HistoryStats{}, nil
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showStats bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished cleaning runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.HistoryDatabase == "" {
				return fmt.Errorf("history database is not configured")
			}
			log, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.Storage.HistoryDatabase, log.Named("history"))
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No cleaning runs recorded yet")
			} else {
				fmt.Fprintln(out, renderHistory(entries))
			}

			if showStats {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStats(stats))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Also show totals")
	return cmd
}

func renderHistory(entries []models.HistoryEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := string(e.Status)
		if e.Error != "" {
			status += ": " + truncate(e.Error, 40)
		}
		rows = append(rows, []string{
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(e.FileName, 32),
			string(e.Kind),
			e.Enhancer,
			formatSeconds(e.DurationSeconds),
			formatMillis(e.CleanTimeMs),
			status,
		})
	}
	return renderTable(
		[]string{"Finished", "File", "Kind", "Enhancer", "Length", "Clean time", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderStats(s models.HistoryStats) string {
	rows := [][]string{
		{"Runs", strconv.Itoa(s.Total)},
		{"Completed", strconv.Itoa(s.Completed)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Videos", strconv.Itoa(s.Videos)},
		{"Audio cleaned", formatSeconds(s.AudioSeconds)},
		{"Avg clean time", formatMillis(int64(s.AvgCleanTimeMs))},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	return d.String()
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
