package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

// ErrInvalidPeriod marks a period definition rejected before it reaches the store.
var ErrInvalidPeriod = errors.New("invalid period")

// Periods administers voting periods.
type Periods struct {
	repo ports.PeriodRepository
}

// NewPeriods wraps the period store.
func NewPeriods(repo ports.PeriodRepository) *Periods {
	return &Periods{repo: repo}
}

// List returns stored periods, latest start first; activeOnly drops inactive ones. The result is never nil.
func (p *Periods) List(ctx context.Context, activeOnly bool) ([]domain.Period, error) {
	periods, err := p.repo.ListPeriods(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if periods == nil {
		periods = []domain.Period{}
	}
	return periods, nil
}

// Create validates and stores a new period.
func (p *Periods) Create(ctx context.Context, period domain.Period) (domain.Period, error) {
	period.ID = strings.TrimSpace(period.ID)
	period.Name = strings.TrimSpace(period.Name)
	switch {
	case period.ID == "":
		return domain.Period{}, fmt.Errorf("%w: id is required", ErrInvalidPeriod)
	case period.Name == "":
		return domain.Period{}, fmt.Errorf("%w: name is required", ErrInvalidPeriod)
	case period.StartAt.IsZero() || period.EndAt.IsZero():
		return domain.Period{}, fmt.Errorf("%w: start and end are required", ErrInvalidPeriod)
	case period.EndAt.Before(period.StartAt):
		return domain.Period{}, fmt.Errorf("%w: end precedes start", ErrInvalidPeriod)
	}

	if err := p.repo.CreatePeriod(ctx, period); err != nil {
		return domain.Period{}, err
	}
	return period, nil
}

// SetActive toggles a period and returns its new state.
func (p *Periods) SetActive(ctx context.Context, id string, active bool) (domain.Period, error) {
	return p.repo.SetPeriodActive(ctx, id, active)
}
