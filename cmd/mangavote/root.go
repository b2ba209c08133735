package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"MangaVote/internal/app"
	"MangaVote/internal/config"
	"MangaVote/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "mangavote",
		Short:        "Monthly manga catalog sync and community voting",
		Long:         "mangavote mirrors the upstream manga catalog, validates ballots against the voting categories and aggregates leaderboards.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (default $MANGAVOTE_CONFIG)")

	root.AddCommand(
		newSyncCmd(opts),
		newScheduleCmd(opts),
		newLeaderboardCmd(opts),
		newCandidatesCmd(opts),
		newPeriodCmd(opts),
		newVoteCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mangavote %s (commit: %s)\n", version, commit)
		},
	}
}

// withApp loads config, builds the application and closes it after fn returns.
func withApp(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	return fn(ctx, application)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", value)
	}
	return t, nil
}
