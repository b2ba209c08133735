package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

var _ ports.PeriodRepository = (*Store)(nil)

var periodColumns = []string{"id", "name", "start_at", "end_at", "is_active", "created_at"}

// ListPeriods returns periods by start descending.
func (s *Store) ListPeriods(ctx context.Context, activeOnly bool) ([]domain.Period, error) {
	b := s.sb.Select(periodColumns...).From("periods").OrderBy("start_at DESC", "id ASC")
	if activeOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}

	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}

	var out []domain.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePeriod inserts p or fails with domain.ErrPeriodExists.
func (s *Store) CreatePeriod(ctx context.Context, p domain.Period) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.findPeriod(ctx, tx, p.ID); err == nil {
			return fmt.Errorf("%w: %s", domain.ErrPeriodExists, p.ID)
		} else if !errors.Is(err, domain.ErrPeriodNotFound) {
			return err
		}

		_, err := s.exec(ctx, tx, s.sb.Insert("periods").
			Columns(periodColumns...).
			Values(p.ID, p.Name, toMillis(p.StartAt), toMillis(p.EndAt), p.Active, toMillis(p.CreatedAt)))
		if err != nil {
			return fmt.Errorf("insert period: %w", err)
		}
		return nil
	})
}

// SetPeriodActive toggles the active flag and returns the updated period.
func (s *Store) SetPeriodActive(ctx context.Context, id string, active bool) (domain.Period, error) {
	var updated domain.Period
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, s.sb.Update("periods").Set("is_active", active).Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("update period: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrPeriodNotFound, id)
		}
		updated, err = s.findPeriod(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Period{}, err
	}
	return updated, nil
}

// OpenPeriod returns the active period whose window contains now. When several overlap,
// the one that started last wins, ties broken by ID.
func (s *Store) OpenPeriod(ctx context.Context, now time.Time) (domain.Period, error) {
	ms := toMillis(now)
	row, err := s.queryRow(ctx, s.db, s.sb.
		Select(periodColumns...).
		From("periods").
		Where(sq.Eq{"is_active": true}).
		Where(sq.LtOrEq{"start_at": ms}).
		Where(sq.GtOrEq{"end_at": ms}).
		OrderBy("start_at DESC", "id ASC").
		Limit(1))
	if err != nil {
		return domain.Period{}, err
	}

	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Period{}, domain.ErrNoActivePeriod
	}
	return p, err
}

func (s *Store) findPeriod(ctx context.Context, q querier, id string) (domain.Period, error) {
	row, err := s.queryRow(ctx, q, s.sb.Select(periodColumns...).From("periods").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Period{}, err
	}
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Period{}, fmt.Errorf("%w: %s", domain.ErrPeriodNotFound, id)
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row scanner) (domain.Period, error) {
	var (
		p                         domain.Period
		startAt, endAt, createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &startAt, &endAt, &p.Active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Period{}, err
		}
		return domain.Period{}, fmt.Errorf("scan period: %w", err)
	}
	p.StartAt = fromMillis(startAt)
	p.EndAt = fromMillis(endAt)
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}
