package usecase

import (
	"context"
	"fmt"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

const defaultPageSize = 10

// LeaderboardService aggregates submissions into per-category rankings.
type LeaderboardService struct {
	tallies ports.TallyRepository
}

// NewLeaderboardService wraps the aggregation store.
func NewLeaderboardService(tallies ports.TallyRepository) *LeaderboardService {
	return &LeaderboardService{tallies: tallies}
}

// Compute builds the leaderboard. The top cutoff is applied before pagination; an empty
// category computes all four.
func (s *LeaderboardService) Compute(ctx context.Context, q domain.LeaderboardQuery) (domain.Leaderboard, error) {
	categories := domain.AllCategories
	if q.Category != "" {
		category, err := domain.ParseCategory(string(q.Category))
		if err != nil {
			return domain.Leaderboard{}, err
		}
		categories = []domain.Category{category}
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}

	count, err := s.tallies.CountSubmissions(ctx, q.PeriodID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("count submissions: %w", err)
	}
	gender, err := s.tallies.Distribution(ctx, domain.FieldGender, q.PeriodID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("gender distribution: %w", err)
	}
	age, err := s.tallies.Distribution(ctx, domain.FieldAge, q.PeriodID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("age distribution: %w", err)
	}

	board := domain.Leaderboard{
		SubmissionCount: count,
		Gender:          gender,
		Age:             age,
		Categories:      make(map[domain.Category][]domain.TallyRow, len(categories)),
	}

	offset, limit := domain.TallyWindow(q.Top, q.Page, q.PageSize)
	for _, category := range categories {
		rows, err := s.tallies.Tally(ctx, category, q.PeriodID, offset, limit)
		if err != nil {
			return domain.Leaderboard{}, fmt.Errorf("tally %s: %w", category, err)
		}
		if rows == nil {
			rows = []domain.TallyRow{}
		}
		board.Categories[category] = rows
	}
	return board, nil
}
