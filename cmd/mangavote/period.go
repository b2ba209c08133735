package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"MangaVote/internal/app"
	"MangaVote/internal/domain"
)

func newPeriodCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage voting periods",
	}
	cmd.AddCommand(newPeriodListCmd(opts), newPeriodCreateCmd(opts), newPeriodToggleCmd(opts))
	return cmd
}

func newPeriodListCmd(opts *rootOptions) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List periods, latest start first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				periods, err := a.Periods.List(ctx, activeOnly)
				if err != nil {
					return fmt.Errorf("listing periods: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), periods)
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active periods")
	return cmd
}

func newPeriodCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		p          domain.Period
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a voting period",
		Long: `Create a voting period. --start and --end accept RFC 3339 timestamps or YYYY-MM-DD dates
(midnight UTC); both bounds are inclusive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if p.StartAt, err = parseTime(start); err != nil {
				return err
			}
			if p.EndAt, err = parseTime(end); err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				created, err := a.Periods.Create(ctx, p)
				if err != nil {
					return fmt.Errorf("creating period: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	cmd.Flags().StringVar(&p.ID, "id", "", "period id")
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().StringVar(&start, "start", "", "start of the voting window")
	cmd.Flags().StringVar(&end, "end", "", "end of the voting window")
	cmd.Flags().BoolVar(&p.Active, "active", false, "open the period immediately")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newPeriodToggleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id> <true|false>",
		Short: "Activate or deactivate a period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid active flag %q: %w", args[1], err)
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				updated, err := a.Periods.SetActive(ctx, args[0], active)
				if err != nil {
					return fmt.Errorf("updating period: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), updated)
			})
		},
	}
}
