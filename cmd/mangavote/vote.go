package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"MangaVote/internal/app"
	"MangaVote/internal/domain"
)

func newVoteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Submit or inspect ballots",
	}
	cmd.AddCommand(newVoteSubmitCmd(opts), newVoteListCmd(opts))
	return cmd
}

func newVoteSubmitCmd(opts *rootOptions) *cobra.Command {
	var fingerprint, userAgent, file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a JSON ballot for the open period",
		Long: `Read a ballot from --file (or stdin with "-") and record it for the currently open period:

  {"favoriteAdaptations": ["<id>"], "favoriteAwardWinnings": [], "favoriteMonthlyPublisheds": [],
   "favoriteRecommendeds": [], "userInfo": {"gender": "female", "age": 27}}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ballot, err := readBallot(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				stored, err := a.Voting.SubmitVote(ctx, fingerprint, userAgent, ballot)
				if err != nil {
					return fmt.Errorf("submitting vote: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), stored)
			})
		},
	}
	cmd.Flags().StringVar(&fingerprint, "ip", "", "submitter fingerprint")
	cmd.Flags().StringVar(&userAgent, "ua", "", "submitter user agent")
	cmd.Flags().StringVar(&file, "file", "-", "ballot JSON file, - for stdin")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func newVoteListCmd(opts *rootOptions) *cobra.Command {
	var fingerprint, periodID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the ballots of one submitter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				votes, err := a.Voting.ListVotes(ctx, fingerprint, periodID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), votes)
			})
		},
	}
	cmd.Flags().StringVar(&fingerprint, "ip", "", "submitter fingerprint")
	cmd.Flags().StringVar(&periodID, "period", "", "restrict to one period")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func readBallot(stdin io.Reader, file string) (domain.Ballot, error) {
	r := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return domain.Ballot{}, fmt.Errorf("opening ballot: %w", err)
		}
		defer f.Close()
		r = f
	}

	var ballot domain.Ballot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ballot); err != nil {
		return domain.Ballot{}, fmt.Errorf("decoding ballot: %w", err)
	}
	return ballot, nil
}
