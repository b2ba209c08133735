package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

var _ ports.SubmissionRepository = (*Store)(nil)

// CreateSubmission checks for an existing (fingerprint, period) record and inserts the
// submission with its choices in the same transaction.
func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.queryRow(ctx, tx, s.sb.
			Select("COUNT(*)").
			From("submissions").
			Where(sq.Eq{"fingerprint": sub.Fingerprint, "period_id": sub.PeriodID}))
		if err != nil {
			return err
		}
		var existing int
		if err := row.Scan(&existing); err != nil {
			return fmt.Errorf("check existing submission: %w", err)
		}
		if existing > 0 {
			return domain.ErrDuplicateSubmission
		}

		_, err = s.exec(ctx, tx, s.sb.Insert("submissions").
			Columns("id", "fingerprint", "user_agent", "period_id", "gender", "age", "created_at").
			Values(sub.ID, sub.Fingerprint, sub.UserAgent, sub.PeriodID,
				sub.Demographics.Gender, sub.Demographics.Age, toMillis(sub.CreatedAt)))
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}

		insert := s.sb.Insert("submission_choices").Columns("submission_id", "category", "position", "entry_id")
		rows := 0
		for _, category := range domain.AllCategories {
			for i, id := range sub.Choices[category] {
				insert = insert.Values(sub.ID, string(category), i, id)
				rows++
			}
		}
		if rows == 0 {
			return nil
		}
		if _, err := s.exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("insert choices: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns the submissions of fingerprint, oldest first. An empty periodID
// lists every period.
func (s *Store) ListSubmissions(ctx context.Context, fingerprint, periodID string) ([]domain.Submission, error) {
	b := s.sb.
		Select("id", "fingerprint", "user_agent", "period_id", "gender", "age", "created_at").
		From("submissions").
		Where(sq.Eq{"fingerprint": fingerprint}).
		OrderBy("created_at ASC", "id ASC")
	if periodID != "" {
		b = b.Where(sq.Eq{"period_id": periodID})
	}

	rows, err := s.query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	var (
		out []domain.Submission
		ids []string
	)
	for rows.Next() {
		var (
			sub       domain.Submission
			createdAt int64
		)
		if err := rows.Scan(&sub.ID, &sub.Fingerprint, &sub.UserAgent, &sub.PeriodID,
			&sub.Demographics.Gender, &sub.Demographics.Age, &createdAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.CreatedAt = fromMillis(createdAt)
		sub.Choices = map[domain.Category][]string{}
		out = append(out, sub)
		ids = append(ids, sub.ID)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	choices, err := s.loadChoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if c, ok := choices[out[i].ID]; ok {
			out[i].Choices = c
		}
	}
	return out, nil
}

func (s *Store) loadChoices(ctx context.Context, ids []string) (map[string]map[domain.Category][]string, error) {
	out := map[string]map[domain.Category][]string{}
	for _, batch := range chunks(ids) {
		rows, err := s.query(ctx, s.db, s.sb.
			Select("submission_id", "category", "entry_id").
			From("submission_choices").
			Where(sq.Eq{"submission_id": batch}).
			OrderBy("submission_id", "category", "position"))
		if err != nil {
			return nil, fmt.Errorf("query choices: %w", err)
		}
		for rows.Next() {
			var id, category, entryID string
			if err := rows.Scan(&id, &category, &entryID); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan choice: %w", err)
			}
			if out[id] == nil {
				out[id] = map[domain.Category][]string{}
			}
			out[id][domain.Category(category)] = append(out[id][domain.Category(category)], entryID)
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}
