package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Demographics is the self-reported submitter profile.
type Demographics struct {
	Gender string `json:"gender"`
	Age    int    `json:"age"`
}

// Ballot is the incoming vote payload before it is bound to a period.
type Ballot struct {
	FavoriteAdaptations       []string     `json:"favoriteAdaptations"`
	FavoriteAwardWinnings     []string     `json:"favoriteAwardWinnings"`
	FavoriteMonthlyPublisheds []string     `json:"favoriteMonthlyPublisheds"`
	FavoriteRecommendeds      []string     `json:"favoriteRecommendeds"`
	UserInfo                  Demographics `json:"userInfo"`
}

// Choices returns the ballot lists keyed by category.
func (b Ballot) Choices() map[Category][]string {
	return map[Category][]string{
		CategoryAdaptation:   b.FavoriteAdaptations,
		CategoryAwardWinning: b.FavoriteAwardWinnings,
		CategoryCurrentMonth: b.FavoriteMonthlyPublisheds,
		CategoryRecommended:  b.FavoriteRecommendeds,
	}
}

// BallotRules bounds what a ballot may contain.
type BallotRules struct {
	MaxChoices int
	MinAge     int
	MaxAge     int
	Genders    []string
}

// DefaultBallotRules mirrors the public voting form.
func DefaultBallotRules() BallotRules {
	return BallotRules{MaxChoices: 10, MinAge: 0, MaxAge: 100, Genders: []string{"male", "female"}}
}

// Validate checks the ballot against rules and returns a *BallotError listing every violation.
func (b Ballot) Validate(rules BallotRules) error {
	var problems []string

	for _, category := range AllCategories {
		ids := b.Choices()[category]
		if rules.MaxChoices > 0 && len(ids) > rules.MaxChoices {
			problems = append(problems, fmt.Sprintf("%s: at most %d choices allowed, got %d", category, rules.MaxChoices, len(ids)))
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if strings.TrimSpace(id) == "" {
				problems = append(problems, fmt.Sprintf("%s: empty id", category))
				continue
			}
			if _, dup := seen[id]; dup {
				problems = append(problems, fmt.Sprintf("%s: duplicate id %s", category, id))
				continue
			}
			seen[id] = struct{}{}
		}
	}

	if !slices.Contains(rules.Genders, b.UserInfo.Gender) {
		problems = append(problems, fmt.Sprintf("userInfo.gender must be one of %s", strings.Join(rules.Genders, ", ")))
	}
	if b.UserInfo.Age < rules.MinAge || b.UserInfo.Age > rules.MaxAge {
		problems = append(problems, fmt.Sprintf("userInfo.age must be between %d and %d", rules.MinAge, rules.MaxAge))
	}

	if len(problems) > 0 {
		return &BallotError{Problems: problems}
	}
	return nil
}

// Submission is one stored vote, at most one per (fingerprint, period).
type Submission struct {
	ID           string                `json:"id"`
	Fingerprint  string                `json:"ip"`
	UserAgent    string                `json:"ua,omitempty"`
	PeriodID     string                `json:"period"`
	Choices      map[Category][]string `json:"choices"`
	Demographics Demographics          `json:"userInfo"`
	CreatedAt    time.Time             `json:"createdAt"`
}
