package domain

import (
	"fmt"
	"slices"
	"time"
)

// CatalogEntry is the normalized local mirror of one upstream manga record.
type CatalogEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"publishedAt"`
	CoverURL    string    `json:"coverUrl"`
	Score       float64   `json:"score"`
}

// Equal reports whether two entries carry identical field values.
func (e CatalogEntry) Equal(other CatalogEntry) bool {
	return e.ID == other.ID &&
		e.Title == other.Title &&
		slices.Equal(e.Tags, other.Tags) &&
		e.PublishedAt.Equal(other.PublishedAt) &&
		e.CoverURL == other.CoverURL &&
		e.Score == other.Score
}

// Category enumerates the four voting categories.
type Category string

const (
	CategoryAdaptation   Category = "adaptation"
	CategoryAwardWinning Category = "award-winning"
	CategoryCurrentMonth Category = "current-month"
	CategoryRecommended  Category = "recommended"
)

// AllCategories lists every category in presentation order.
var AllCategories = []Category{
	CategoryAdaptation,
	CategoryAwardWinning,
	CategoryCurrentMonth,
	CategoryRecommended,
}

// ParseCategory maps a raw string to a known category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !slices.Contains(AllCategories, c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return c, nil
}

// Membership is a resolved category predicate. Zero-valued bounds are not applied.
type Membership struct {
	Tag             string
	PublishedFrom   time.Time
	PublishedBefore time.Time
	MinScore        float64
	HasMinScore     bool
}

// MonthWindow returns [first day of now's UTC month, first day of the next UTC month).
func MonthWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// InvalidEntry names a candidate that failed its category predicate.
type InvalidEntry struct {
	Category Category `json:"type"`
	ID       string   `json:"id"`
}

// Candidate is the display projection used when listing eligible entries.
type Candidate struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoverURL string `json:"coverUrl"`
}

// CandidatePage is one page of eligible entries for a category.
type CandidatePage struct {
	Results []Candidate `json:"results"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Page    int         `json:"page"`
}

// MergeResult summarizes an upsert-by-ID catalog merge.
type MergeResult struct {
	Matched  int `json:"matchedCount"`
	Modified int `json:"modifiedCount"`
	Upserted int `json:"upsertedCount"`
	Inserted int `json:"insertedCount"`
}
