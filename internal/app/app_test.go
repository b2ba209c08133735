package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"MangaVote/internal/config"
	"MangaVote/internal/domain"
)

func TestApplicationEndToEndVoting(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")

	ctx := context.Background()
	application, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer application.Close()

	now := time.Now().UTC()
	if _, err := application.Periods.Create(ctx, domain.Period{
		ID:      "current",
		Name:    "Current",
		StartAt: now.Add(-time.Hour),
		EndAt:   now.Add(time.Hour),
		Active:  true,
	}); err != nil {
		t.Fatalf("Create period: %v", err)
	}

	ballot := domain.Ballot{
		FavoriteAdaptations: []string{"unknown"},
		UserInfo:            domain.Demographics{Gender: "male", Age: 33},
	}
	_, err = application.Voting.SubmitVote(ctx, "127.0.0.1", "test", ballot)
	var invalid *domain.InvalidEntriesError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected unknown ids to be rejected, got %v", err)
	}

	ballot.FavoriteAdaptations = nil
	if _, err := application.Voting.SubmitVote(ctx, "127.0.0.1", "test", ballot); err != nil {
		t.Fatalf("SubmitVote error: %v", err)
	}
	if _, err := application.Voting.SubmitVote(ctx, "127.0.0.1", "test", ballot); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	board, err := application.Leaderboard.Compute(ctx, domain.LeaderboardQuery{PeriodID: "current"})
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	if board.SubmissionCount != 1 || len(board.Categories) != 4 {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	if _, err := application.Scheduler(); err != nil {
		t.Fatalf("Scheduler error: %v", err)
	}
}
