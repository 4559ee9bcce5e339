package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/store"
)

// RecordRun stores a load batch summary.
func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO load_runs (id, started_at, finished_at, embedding_model, articles,
                       attempted, succeeded, failed, skipped_articles)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Model,
		run.Articles, run.Attempted, run.Succeeded, run.Failed, run.SkippedArticles,
	)
	if err != nil {
		return fmt.Errorf("%w: recording run %s: %w", store.ErrPersistence, run.ID, err)
	}
	return nil
}

// LastRun returns the most recently started load run, or nil if none.
func (s *Store) LastRun(ctx context.Context) (*store.Run, error) {
	var (
		r                 store.Run
		started, finished string
		model             sql.NullString
	)
	err := s.conn.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, embedding_model, articles, attempted,
       succeeded, failed, skipped_articles
FROM load_runs
ORDER BY started_at DESC
LIMIT 1`).Scan(&r.ID, &started, &finished, &model, &r.Articles, &r.Attempted,
		&r.Succeeded, &r.Failed, &r.SkippedArticles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last run: %w", err)
	}

	r.Model = model.String
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &r, nil
}
