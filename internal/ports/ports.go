package ports

import (
	"context"
	"time"

	"MangaVote/internal/domain"
)

// ListingQuery asks the upstream catalog for one page of entries.
type ListingQuery struct {
	Limit             int
	Offset            int
	IncludedTags      []string
	IncludedTagsMode  string
	OriginalLanguages []string
	Includes          []string
}

// ListingPage is one normalized page of the upstream listing.
type ListingPage struct {
	Entries []domain.CatalogEntry
	Total   int
}

// CatalogAPI pulls listing pages and popularity scores from the upstream catalog.
type CatalogAPI interface {
	ListEntries(ctx context.Context, q ListingQuery) (ListingPage, error)
	Ratings(ctx context.Context, ids []string) (map[string]float64, error)
}

// CatalogRepository merges normalized entries into the local catalog.
type CatalogRepository interface {
	UpsertEntries(ctx context.Context, entries []domain.CatalogEntry) (domain.MergeResult, error)
}

// CatalogReader evaluates category predicates against the local catalog.
type CatalogReader interface {
	// ScoreAtRank returns the score of the rank-th entry by descending score, or 0 if absent.
	ScoreAtRank(ctx context.Context, rank int) (float64, error)
	MatchIDs(ctx context.Context, ids []string, m domain.Membership) (map[string]bool, error)
	ListMatching(ctx context.Context, m domain.Membership, offset, limit int) ([]domain.Candidate, int, error)
}

// PeriodRepository stores voting periods.
type PeriodRepository interface {
	ListPeriods(ctx context.Context, activeOnly bool) ([]domain.Period, error)
	CreatePeriod(ctx context.Context, p domain.Period) error
	SetPeriodActive(ctx context.Context, id string, active bool) (domain.Period, error)
	// OpenPeriod returns the period accepting submissions at now or domain.ErrNoActivePeriod.
	OpenPeriod(ctx context.Context, now time.Time) (domain.Period, error)
}

// SubmissionRepository stores votes.
type SubmissionRepository interface {
	// CreateSubmission inserts atomically or fails with domain.ErrDuplicateSubmission.
	// The stored submission carries the generated ID.
	CreateSubmission(ctx context.Context, s domain.Submission) (domain.Submission, error)
	ListSubmissions(ctx context.Context, fingerprint, periodID string) ([]domain.Submission, error)
}

// TallyRepository runs the leaderboard aggregations.
type TallyRepository interface {
	CountSubmissions(ctx context.Context, periodID string) (int, error)
	Distribution(ctx context.Context, field domain.DemographicField, periodID string) ([]domain.Bucket, error)
	Tally(ctx context.Context, category domain.Category, periodID string, offset, limit int) ([]domain.TallyRow, error)
}

// SubmissionGuard claims a (period, fingerprint) slot ahead of the store-level check.
type SubmissionGuard interface {
	Claim(ctx context.Context, periodID, fingerprint string) (bool, error)
	Release(ctx context.Context, periodID, fingerprint string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
