package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

var _ ports.TallyRepository = (*Store)(nil)

// CountSubmissions counts submissions, optionally within one period.
func (s *Store) CountSubmissions(ctx context.Context, periodID string) (int, error) {
	b := s.sb.Select("COUNT(*)").From("submissions")
	if periodID != "" {
		b = b.Where(sq.Eq{"period_id": periodID})
	}

	row, err := s.queryRow(ctx, s.db, b)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

// Distribution groups submissions by a demographic column, largest groups first.
func (s *Store) Distribution(ctx context.Context, field domain.DemographicField, periodID string) ([]domain.Bucket, error) {
	var column string
	switch field {
	case domain.FieldGender:
		column = "gender"
	case domain.FieldAge:
		column = "age"
	default:
		return nil, fmt.Errorf("unknown demographic field %q", field)
	}

	b := s.sb.
		Select(column, "COUNT(*) AS total").
		From("submissions").
		GroupBy(column).
		OrderBy("total DESC", column+" ASC")
	if periodID != "" {
		b = b.Where(sq.Eq{"period_id": periodID})
	}

	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("%s distribution: %w", column, err)
	}

	out := []domain.Bucket{}
	for rows.Next() {
		var bucket domain.Bucket
		if err := rows.Scan(&bucket.Key, &bucket.Count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, bucket)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// Tally ranks the entries chosen under category by vote count, joined to the catalog for
// display. Entries missing from the catalog keep a nil Entry. A negative limit is unbounded.
func (s *Store) Tally(ctx context.Context, category domain.Category, periodID string, offset, limit int) ([]domain.TallyRow, error) {
	out := []domain.TallyRow{}
	if limit == 0 {
		return out, nil
	}

	b := s.sb.
		Select("c.entry_id", "COUNT(*) AS votes", "e.id", "e.title", "e.published_at", "e.cover_url", "e.score").
		From("submission_choices c").
		Join("submissions s ON s.id = c.submission_id").
		LeftJoin("catalog_entries e ON e.id = c.entry_id").
		Where(sq.Eq{"c.category": string(category)}).
		GroupBy("c.entry_id", "e.id", "e.title", "e.published_at", "e.cover_url", "e.score").
		OrderBy("votes DESC", "c.entry_id ASC").
		Offset(uint64(max(offset, 0)))
	if periodID != "" {
		b = b.Where(sq.Eq{"s.period_id": periodID})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	} else {
		// SQLite requires a LIMIT before OFFSET.
		b = b.Limit(1 << 62)
	}

	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("tally %s: %w", category, err)
	}

	var joined []string
	for rows.Next() {
		var (
			row       domain.TallyRow
			id, title sql.NullString
			published sql.NullInt64
			cover     sql.NullString
			score     sql.NullFloat64
		)
		if err := rows.Scan(&row.EntryID, &row.Votes, &id, &title, &published, &cover, &score); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		if id.Valid {
			row.Entry = &domain.CatalogEntry{
				ID:          id.String,
				Title:       title.String,
				PublishedAt: fromMillis(published.Int64),
				CoverURL:    cover.String,
				Score:       score.Float64,
			}
			joined = append(joined, id.String)
		}
		out = append(out, row)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	tags, err := s.loadTags(ctx, s.db, joined)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Entry != nil {
			out[i].Entry.Tags = tags[out[i].Entry.ID]
		}
	}
	return out, nil
}
