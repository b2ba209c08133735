// Package category decides catalog membership for each voting category.
//
// The same resolved predicate is used to validate submitted ballots and to list eligible
// candidates, so both paths always agree. Nothing is cached: rolling predicates (the current
// month window, the top-ranked score threshold) are recomputed on every call.
package category

import (
	"context"
	"fmt"
	"time"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

// Resolver produces the membership predicate of one category at a point in time.
type Resolver func(ctx context.Context, now time.Time) (domain.Membership, error)

// Config holds the literal tags and the ranking cutoff.
type Config struct {
	AdaptationTag   string
	AwardWinningTag string
	TopRankedLimit  int
}

// DefaultConfig returns the production tags and a top-500 cutoff.
func DefaultConfig() Config {
	return Config{AdaptationTag: "Adaptation", AwardWinningTag: "Award Winning", TopRankedLimit: 500}
}

// Engine keeps a mapping from categories to their resolvers.
type Engine struct {
	catalog   ports.CatalogReader
	resolvers map[domain.Category]Resolver
	now       func() time.Time
}

// NewEngine registers the four built-in categories.
func NewEngine(cfg Config, catalog ports.CatalogReader) *Engine {
	e := &Engine{catalog: catalog, resolvers: map[domain.Category]Resolver{}, now: time.Now}
	e.Register(domain.CategoryAdaptation, TagResolver(cfg.AdaptationTag))
	e.Register(domain.CategoryAwardWinning, TagResolver(cfg.AwardWinningTag))
	e.Register(domain.CategoryCurrentMonth, MonthResolver())
	e.Register(domain.CategoryRecommended, TopRankedResolver(catalog, cfg.TopRankedLimit))
	return e
}

// WithClock overrides the wall clock, mainly for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Register adds or replaces a category resolver.
func (e *Engine) Register(category domain.Category, resolver Resolver) {
	e.resolvers[category] = resolver
}

// Membership resolves the current predicate for category.
func (e *Engine) Membership(ctx context.Context, category domain.Category) (domain.Membership, error) {
	resolver, ok := e.resolvers[category]
	if !ok {
		return domain.Membership{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	return resolver(ctx, e.now())
}

// ValidateIDs reports every candidate that does not currently satisfy its category predicate.
// Categories are checked in domain.AllCategories order; candidates keep their submitted order.
func (e *Engine) ValidateIDs(ctx context.Context, candidates map[domain.Category][]string) ([]domain.InvalidEntry, error) {
	for category := range candidates {
		if _, ok := e.resolvers[category]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
		}
	}

	var invalid []domain.InvalidEntry
	for _, category := range domain.AllCategories {
		ids := candidates[category]
		if len(ids) == 0 {
			continue
		}

		membership, err := e.Membership(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", category, err)
		}

		valid, err := e.catalog.MatchIDs(ctx, ids, membership)
		if err != nil {
			return nil, fmt.Errorf("match %s ids: %w", category, err)
		}

		for _, id := range ids {
			if !valid[id] {
				invalid = append(invalid, domain.InvalidEntry{Category: category, ID: id})
			}
		}
	}
	return invalid, nil
}

// Candidates lists eligible entries for category, sorted by title.
func (e *Engine) Candidates(ctx context.Context, category domain.Category, page, limit int) (domain.CandidatePage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	membership, err := e.Membership(ctx, category)
	if err != nil {
		return domain.CandidatePage{}, err
	}

	results, total, err := e.catalog.ListMatching(ctx, membership, (page-1)*limit, limit)
	if err != nil {
		return domain.CandidatePage{}, fmt.Errorf("list %s candidates: %w", category, err)
	}
	if results == nil {
		results = []domain.Candidate{}
	}
	return domain.CandidatePage{Results: results, Total: total, Limit: limit, Page: page}, nil
}

// TagResolver matches entries carrying tag.
func TagResolver(tag string) Resolver {
	return func(context.Context, time.Time) (domain.Membership, error) {
		return domain.Membership{Tag: tag}, nil
	}
}

// MonthResolver matches entries published in the current UTC calendar month.
func MonthResolver() Resolver {
	return func(_ context.Context, now time.Time) (domain.Membership, error) {
		from, before := domain.MonthWindow(now)
		return domain.Membership{PublishedFrom: from, PublishedBefore: before}, nil
	}
}

// TopRankedResolver matches entries scoring at least the limit-th highest score.
// With fewer than limit entries the threshold is 0.
func TopRankedResolver(catalog ports.CatalogReader, limit int) Resolver {
	return func(ctx context.Context, _ time.Time) (domain.Membership, error) {
		if limit <= 0 {
			return domain.Membership{}, nil
		}
		threshold, err := catalog.ScoreAtRank(ctx, limit)
		if err != nil {
			return domain.Membership{}, fmt.Errorf("score at rank %d: %w", limit, err)
		}
		return domain.Membership{MinScore: threshold, HasMinScore: true}, nil
	}
}
