package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MangaVote/internal/app"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one catalog synchronization now",
		Long: `Page through the upstream listing, enrich every entry with its rating and merge the
result into the local catalog. Failed requests are retried until they succeed; use --timeout
or Ctrl-C to bound the run. A run stopped early does not merge anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return withApp(ctx, opts, func(ctx context.Context, a *app.Application) error {
				result, err := a.Pipeline.Synchronize(ctx)
				if err != nil {
					return fmt.Errorf("synchronizing catalog: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this duration (0 = no limit)")
	return cmd
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the catalog synchronization monthly until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, func(ctx context.Context, a *app.Application) error {
				scheduler, err := a.Scheduler()
				if err != nil {
					return err
				}
				if err := scheduler.Start(ctx); err != nil {
					return fmt.Errorf("starting scheduler: %w", err)
				}

				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return scheduler.Stop(stopCtx)
			})
		},
	}
}
