package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"MangaVote/internal/app"
	"MangaVote/internal/domain"
)

func newLeaderboardCmd(opts *rootOptions) *cobra.Command {
	var (
		q        domain.LeaderboardQuery
		category string
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print vote tallies and demographic distributions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if category != "" {
				c, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				q.Category = c
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				board, err := a.Leaderboard.Compute(ctx, q)
				if err != nil {
					return fmt.Errorf("computing leaderboard: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), board)
			})
		},
	}
	cmd.Flags().StringVar(&q.PeriodID, "period", "", "only count submissions of this period")
	cmd.Flags().StringVar(&category, "category", "", "adaptation, award-winning, current-month or recommended (default all)")
	cmd.Flags().IntVar(&q.Top, "top", 0, "truncate each ranking to the top N before paging (0 = no cutoff)")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 10, "rows per page")
	return cmd
}

func newCandidatesCmd(opts *rootOptions) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "candidates <category>",
		Short: "List catalog entries currently eligible for a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := domain.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				result, err := a.Engine.Candidates(ctx, category, page, limit)
				if err != nil {
					return fmt.Errorf("listing candidates: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "entries per page")
	return cmd
}
