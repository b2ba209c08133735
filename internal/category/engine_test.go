package category

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"MangaVote/internal/domain"
)

// memoryCatalog evaluates memberships in process, the same way the SQL store does.
type memoryCatalog struct {
	entries     []domain.CatalogEntry
	rankQueries int
}

func (m *memoryCatalog) ScoreAtRank(_ context.Context, rank int) (float64, error) {
	m.rankQueries++
	scores := make([]float64, 0, len(m.entries))
	for _, e := range m.entries {
		scores = append(scores, e.Score)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	if rank <= 0 || rank > len(scores) {
		return 0, nil
	}
	return scores[rank-1], nil
}

func (m *memoryCatalog) MatchIDs(_ context.Context, ids []string, membership domain.Membership) (map[string]bool, error) {
	out := map[string]bool{}
	for _, e := range m.entries {
		for _, id := range ids {
			if e.ID == id && matches(membership, e) {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (m *memoryCatalog) ListMatching(_ context.Context, membership domain.Membership, offset, limit int) ([]domain.Candidate, int, error) {
	var matched []domain.Candidate
	for _, e := range m.entries {
		if matches(membership, e) {
			matched = append(matched, domain.Candidate{ID: e.ID, Title: e.Title, CoverURL: e.CoverURL})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

// matches evaluates a membership against a single entry.
func matches(m domain.Membership, e domain.CatalogEntry) bool {
	if m.Tag != "" && !slices.Contains(e.Tags, m.Tag) {
		return false
	}
	if !m.PublishedFrom.IsZero() && e.PublishedAt.Before(m.PublishedFrom) {
		return false
	}
	if !m.PublishedBefore.IsZero() && !e.PublishedAt.Before(m.PublishedBefore) {
		return false
	}
	if m.HasMinScore && e.Score < m.MinScore {
		return false
	}
	return true
}

var fixedNow = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine(entries ...domain.CatalogEntry) (*Engine, *memoryCatalog) {
	catalog := &memoryCatalog{entries: entries}
	cfg := DefaultConfig()
	cfg.TopRankedLimit = 2
	return NewEngine(cfg, catalog).WithClock(func() time.Time { return fixedNow }), catalog
}

func TestValidateIDsReportsEveryMismatch(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(
		domain.CatalogEntry{ID: "a", Tags: []string{"Adaptation"}, PublishedAt: time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), Score: 9},
		domain.CatalogEntry{ID: "b", Tags: []string{"Award Winning"}, PublishedAt: time.Date(2026, time.September, 30, 23, 59, 59, 0, time.UTC), Score: 8},
		domain.CatalogEntry{ID: "c", Score: 1},
	)

	invalid, err := engine.ValidateIDs(context.Background(), map[domain.Category][]string{
		domain.CategoryAdaptation:   {"a", "b", "zzz"},
		domain.CategoryAwardWinning: {"b"},
		domain.CategoryCurrentMonth: {"a", "b"},
		domain.CategoryRecommended:  {"c", "a"},
	})
	if err != nil {
		t.Fatalf("ValidateIDs error: %v", err)
	}

	var got []string
	for _, entry := range invalid {
		got = append(got, string(entry.Category)+"/"+entry.ID)
	}
	want := "adaptation/b,adaptation/zzz,current-month/b,recommended/c"
	if strings.Join(got, ",") != want {
		t.Fatalf("expected %s, got %s", want, strings.Join(got, ","))
	}
}

func TestValidateIDsAllValid(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(domain.CatalogEntry{ID: "a", Tags: []string{"Adaptation"}})
	invalid, err := engine.ValidateIDs(context.Background(), map[domain.Category][]string{
		domain.CategoryAdaptation: {"a"},
	})
	if err != nil || len(invalid) != 0 {
		t.Fatalf("expected no invalid entries, got %v (err %v)", invalid, err)
	}
}

func TestValidateIDsUnknownCategory(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine()
	_, err := engine.ValidateIDs(context.Background(), map[domain.Category][]string{"horror": {"a"}})
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestTopRankedThresholdBelowLimitAdmitsAll(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(domain.CatalogEntry{ID: "only", Score: 0})
	m, err := engine.Membership(context.Background(), domain.CategoryRecommended)
	if err != nil {
		t.Fatalf("Membership error: %v", err)
	}
	if !m.HasMinScore || m.MinScore != 0 {
		t.Fatalf("expected threshold 0, got %+v", m)
	}
}

func TestTopRankedIsRecomputedEachCall(t *testing.T) {
	t.Parallel()

	engine, catalog := newTestEngine(
		domain.CatalogEntry{ID: "a", Score: 9},
		domain.CatalogEntry{ID: "b", Score: 5},
	)

	first, _ := engine.Membership(context.Background(), domain.CategoryRecommended)
	catalog.entries = append(catalog.entries, domain.CatalogEntry{ID: "c", Score: 7})
	second, _ := engine.Membership(context.Background(), domain.CategoryRecommended)

	if first.MinScore != 5 || second.MinScore != 7 {
		t.Fatalf("expected thresholds 5 then 7, got %v then %v", first.MinScore, second.MinScore)
	}
	if catalog.rankQueries != 2 {
		t.Fatalf("expected two rank lookups, got %d", catalog.rankQueries)
	}
}

func TestCandidatesPaginatesByTitle(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(
		domain.CatalogEntry{ID: "1", Title: "Gamma", Tags: []string{"Adaptation"}},
		domain.CatalogEntry{ID: "2", Title: "Alpha", Tags: []string{"Adaptation"}},
		domain.CatalogEntry{ID: "3", Title: "Beta", Tags: []string{"Adaptation"}},
		domain.CatalogEntry{ID: "4", Title: "Aardvark"},
	)

	page, err := engine.Candidates(context.Background(), domain.CategoryAdaptation, 2, 2)
	if err != nil {
		t.Fatalf("Candidates error: %v", err)
	}
	if page.Total != 3 || len(page.Results) != 1 || page.Results[0].Title != "Gamma" {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, err := engine.Candidates(context.Background(), domain.CategoryAdaptation, 9, 2)
	if err != nil {
		t.Fatalf("Candidates error: %v", err)
	}
	if empty.Results == nil || len(empty.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", empty.Results)
	}
}

func TestMembershipMatches(t *testing.T) {
	t.Parallel()

	from, before := domain.MonthWindow(time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC))
	entry := domain.CatalogEntry{
		ID:          "a",
		Tags:        []string{"Adaptation"},
		PublishedAt: time.Date(2026, time.October, 31, 23, 0, 0, 0, time.UTC),
		Score:       7.5,
	}

	cases := []struct {
		name string
		m    domain.Membership
		want bool
	}{
		{"tag hit", domain.Membership{Tag: "Adaptation"}, true},
		{"tag miss", domain.Membership{Tag: "Award Winning"}, false},
		{"last day of month", domain.Membership{PublishedFrom: from, PublishedBefore: before}, true},
		{"next month excluded", domain.Membership{PublishedFrom: before, PublishedBefore: before.AddDate(0, 1, 0)}, false},
		{"score at threshold", domain.Membership{MinScore: 7.5, HasMinScore: true}, true},
		{"score below threshold", domain.Membership{MinScore: 7.6, HasMinScore: true}, false},
	}

	for _, tc := range cases {
		if got := matches(tc.m, entry); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
