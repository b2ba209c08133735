package domain

// DemographicField selects which submitter attribute a distribution groups by.
type DemographicField string

const (
	FieldGender DemographicField = "gender"
	FieldAge    DemographicField = "age"
)

// Bucket is one group of a demographic distribution.
type Bucket struct {
	Key   string `json:"_id"`
	Count int    `json:"count"`
}

// TallyRow is one ranked entry of a category leaderboard.
type TallyRow struct {
	EntryID string        `json:"_id"`
	Votes   int           `json:"count"`
	Entry   *CatalogEntry `json:"manga,omitempty"`
}

// LeaderboardQuery scopes a leaderboard read. Empty PeriodID and Category mean unscoped;
// Top <= 0 disables the cutoff.
type LeaderboardQuery struct {
	PeriodID string
	Category Category
	Top      int
	Page     int
	PageSize int
}

// Leaderboard is the aggregated read model.
type Leaderboard struct {
	SubmissionCount int                     `json:"count"`
	Gender          []Bucket                `json:"gender"`
	Age             []Bucket                `json:"age"`
	Categories      map[Category][]TallyRow `json:"categories"`
}

// TallyWindow converts top-cutoff pagination into an offset/limit pair over the ranked list.
// The cutoff applies before pagination; a zero limit means the page is past the cutoff.
func TallyWindow(top, page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 0 {
		pageSize = 0
	}
	offset = (page - 1) * pageSize
	limit = pageSize
	if top > 0 {
		remaining := top - offset
		if remaining < 0 {
			remaining = 0
		}
		limit = min(limit, remaining)
	}
	return offset, limit
}
