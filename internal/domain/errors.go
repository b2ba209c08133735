package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoActivePeriod      = errors.New("no active voting period")
	ErrDuplicateSubmission = errors.New("submission already recorded for this period")
	ErrPeriodNotFound      = errors.New("period not found")
	ErrPeriodExists        = errors.New("period already exists")
	ErrUnknownCategory     = errors.New("unknown category")
)

// InvalidEntriesError reports candidates that failed their category predicate.
type InvalidEntriesError struct {
	Entries []InvalidEntry
}

func (e *InvalidEntriesError) Error() string {
	parts := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		parts = append(parts, fmt.Sprintf("%s/%s", entry.Category, entry.ID))
	}
	return "invalid catalog ids: " + strings.Join(parts, ", ")
}

// BallotError lists every schema constraint an incoming ballot violates.
type BallotError struct {
	Problems []string
}

func (e *BallotError) Error() string {
	return "invalid ballot: " + strings.Join(e.Problems, "; ")
}
