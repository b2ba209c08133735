package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

var (
	_ ports.CatalogRepository = (*Store)(nil)
	_ ports.CatalogReader     = (*Store)(nil)
)

// UpsertEntries merges entries by ID in one transaction. Unchanged rows are left untouched,
// so replaying an identical batch reports only matches.
func (s *Store) UpsertEntries(ctx context.Context, entries []domain.CatalogEntry) (domain.MergeResult, error) {
	var result domain.MergeResult
	if len(entries) == 0 {
		return result, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.loadEntries(ctx, tx, ids)
		if err != nil {
			return err
		}

		syncedAt := toMillis(s.now())
		for _, entry := range entries {
			// Timestamps persist at millisecond precision.
			entry.PublishedAt = fromMillis(toMillis(entry.PublishedAt))
			stored, found := existing[entry.ID]
			switch {
			case found && stored.Equal(entry):
				result.Matched++
				continue
			case found:
				result.Matched++
				result.Modified++
			default:
				result.Upserted++
			}

			if err := s.writeEntry(ctx, tx, entry, syncedAt); err != nil {
				return err
			}
			existing[entry.ID] = entry
		}
		return nil
	})
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("upsert entries: %w", err)
	}
	return result, nil
}

func (s *Store) writeEntry(ctx context.Context, tx *sql.Tx, entry domain.CatalogEntry, syncedAt int64) error {
	upsert := s.sb.Insert("catalog_entries").
		Columns("id", "title", "published_at", "cover_url", "score", "synced_at").
		Values(entry.ID, entry.Title, toMillis(entry.PublishedAt), entry.CoverURL, entry.Score, syncedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			published_at = excluded.published_at,
			cover_url = excluded.cover_url,
			score = excluded.score,
			synced_at = excluded.synced_at`)
	if _, err := s.exec(ctx, tx, upsert); err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.ID, err)
	}

	if _, err := s.exec(ctx, tx, s.sb.Delete("catalog_tags").Where(sq.Eq{"entry_id": entry.ID})); err != nil {
		return fmt.Errorf("clear tags of %s: %w", entry.ID, err)
	}
	if len(entry.Tags) == 0 {
		return nil
	}

	insert := s.sb.Insert("catalog_tags").Columns("entry_id", "position", "tag")
	for i, tag := range entry.Tags {
		insert = insert.Values(entry.ID, i, tag)
	}
	if _, err := s.exec(ctx, tx, insert); err != nil {
		return fmt.Errorf("insert tags of %s: %w", entry.ID, err)
	}
	return nil
}

// loadEntries returns the stored entries among ids, tags included.
func (s *Store) loadEntries(ctx context.Context, q querier, ids []string) (map[string]domain.CatalogEntry, error) {
	out := make(map[string]domain.CatalogEntry, len(ids))
	for _, batch := range chunks(ids) {
		rows, err := s.query(ctx, q, s.sb.
			Select("id", "title", "published_at", "cover_url", "score").
			From("catalog_entries").
			Where(sq.Eq{"id": batch}))
		if err != nil {
			return nil, fmt.Errorf("query entries: %w", err)
		}
		for rows.Next() {
			var (
				e         domain.CatalogEntry
				published int64
			)
			if err := rows.Scan(&e.ID, &e.Title, &published, &e.CoverURL, &e.Score); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan entry: %w", err)
			}
			e.PublishedAt = fromMillis(published)
			out[e.ID] = e
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}

	tags, err := s.loadTags(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for id, e := range out {
		e.Tags = tags[id]
		out[id] = e
	}
	return out, nil
}

func (s *Store) loadTags(ctx context.Context, q querier, ids []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, batch := range chunks(ids) {
		rows, err := s.query(ctx, q, s.sb.
			Select("entry_id", "tag").
			From("catalog_tags").
			Where(sq.Eq{"entry_id": batch}).
			OrderBy("entry_id", "position"))
		if err != nil {
			return nil, fmt.Errorf("query tags: %w", err)
		}
		for rows.Next() {
			var id, tag string
			if err := rows.Scan(&id, &tag); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan tag: %w", err)
			}
			out[id] = append(out[id], tag)
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ScoreAtRank returns the rank-th highest score, or 0 when the catalog is smaller than rank.
func (s *Store) ScoreAtRank(ctx context.Context, rank int) (float64, error) {
	if rank <= 0 {
		return 0, nil
	}
	row, err := s.queryRow(ctx, s.db, s.sb.
		Select("score").
		From("catalog_entries").
		OrderBy("score DESC").
		Limit(1).
		Offset(uint64(rank-1)))
	if err != nil {
		return 0, err
	}

	var score float64
	if err := row.Scan(&score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("score at rank: %w", err)
	}
	return score, nil
}

// MatchIDs reports which of ids exist and satisfy m.
func (s *Store) MatchIDs(ctx context.Context, ids []string, m domain.Membership) (map[string]bool, error) {
	out := map[string]bool{}
	for _, batch := range chunks(ids) {
		rows, err := s.query(ctx, s.db, s.sb.
			Select("e.id").
			From("catalog_entries e").
			Where(sq.Eq{"e.id": batch}).
			Where(membershipFilter(m)))
		if err != nil {
			return nil, fmt.Errorf("match ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan id: %w", err)
			}
			out[id] = true
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListMatching pages through entries satisfying m by title, returning the page and the total.
func (s *Store) ListMatching(ctx context.Context, m domain.Membership, offset, limit int) ([]domain.Candidate, int, error) {
	filter := membershipFilter(m)

	row, err := s.queryRow(ctx, s.db, s.sb.Select("COUNT(*)").From("catalog_entries e").Where(filter))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count matching: %w", err)
	}
	if limit <= 0 || offset >= total {
		return nil, total, nil
	}

	rows, err := s.query(ctx, s.db, s.sb.
		Select("e.id", "e.title", "e.cover_url").
		From("catalog_entries e").
		Where(filter).
		OrderBy("e.title ASC", "e.id ASC").
		Limit(uint64(limit)).
		Offset(uint64(max(offset, 0))))
	if err != nil {
		return nil, 0, fmt.Errorf("list matching: %w", err)
	}

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.Title, &c.CoverURL); err != nil {
			_ = rows.Close()
			return nil, 0, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// membershipFilter translates a predicate over the catalog_entries alias e.
func membershipFilter(m domain.Membership) sq.And {
	filter := sq.And{}
	if m.Tag != "" {
		filter = append(filter, sq.Expr("EXISTS (SELECT 1 FROM catalog_tags t WHERE t.entry_id = e.id AND t.tag = ?)", m.Tag))
	}
	if !m.PublishedFrom.IsZero() {
		filter = append(filter, sq.GtOrEq{"e.published_at": toMillis(m.PublishedFrom)})
	}
	if !m.PublishedBefore.IsZero() {
		filter = append(filter, sq.Lt{"e.published_at": toMillis(m.PublishedBefore)})
	}
	if m.HasMinScore {
		filter = append(filter, sq.GtOrEq{"e.score": m.MinScore})
	}
	return filter
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}
	return nil
}
