// Package postgres stores chunks in PostgreSQL with the pgvector extension
// and lets the database rank them.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/TobiSchelling/newsjuice/internal/config"
	"github.com/TobiSchelling/newsjuice/internal/store"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Store struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Options configure the table layout. Dimension fixes the vector(D)
// column type; Metric selects the operator class of the HNSW index.
type Options struct {
	DSN       string
	Table     string
	Dimension int
	Metric    store.Metric
}

// Open connects, creates the vector extension and the tables if missing,
// and returns a pooled store. Connection failures are configuration errors.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "postgres-store")

	if opts.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is empty", config.ErrConfiguration)
	}
	if opts.Table == "" {
		opts.Table = "chunks_vector"
	}
	if !identPattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", config.ErrConfiguration, opts.Table)
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive", config.ErrConfiguration)
	}
	metric, err := store.ParseMetric(string(opts.Metric))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	// The extension has to exist before the pool registers the vector type.
	conn, err := pgx.Connect(ctx, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %v", config.ErrConfiguration, err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enabling pgvector: %v", config.ErrConfiguration, err)
	}

	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing DSN: %v", config.ErrConfiguration, err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pool: %v", config.ErrConfiguration, err)
	}

	s := &Store{pool: pool, table: opts.Table, dimension: opts.Dimension, logger: logger}
	if err := s.createSchema(ctx, metric); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context, metric store.Metric) error {
	ops := map[store.Metric]string{
		store.Cosine:       "vector_cosine_ops",
		store.Euclidean:    "vector_l2_ops",
		store.InnerProduct: "vector_ip_ops",
	}[metric]

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    article_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    author TEXT,
    title TEXT,
    summary TEXT,
    source_link TEXT NOT NULL,
    fetched_at TIMESTAMPTZ NOT NULL,
    published_at TIMESTAMPTZ,
    source_type TEXT,
    chunk_text TEXT NOT NULL,
    embedding vector(%d) NOT NULL,
    embedding_model TEXT,
    UNIQUE (article_id, chunk_index)
)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_%s_idx ON %s USING hnsw (embedding %s)`,
			s.table, metric, s.table, ops),
		`CREATE TABLE IF NOT EXISTS load_runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    embedding_model TEXT,
    articles INTEGER DEFAULT 0,
    attempted INTEGER DEFAULT 0,
    succeeded INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    skipped_articles INTEGER DEFAULT 0
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: creating schema: %v", config.ErrConfiguration, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Upsert(ctx context.Context, row store.Row) error {
	if err := store.CheckRow(row); err != nil {
		return err
	}
	if len(row.Embedding) != s.dimension {
		return fmt.Errorf("%w: chunk %s has dimension %d, table expects %d",
			store.ErrPersistence, row.ChunkID(), len(row.Embedding), s.dimension)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (
    article_id, chunk_index, author, title, summary, source_link, fetched_at,
    published_at, source_type, chunk_text, embedding, embedding_model
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (article_id, chunk_index) DO UPDATE SET
    author = EXCLUDED.author,
    title = EXCLUDED.title,
    summary = EXCLUDED.summary,
    source_link = EXCLUDED.source_link,
    fetched_at = EXCLUDED.fetched_at,
    published_at = EXCLUDED.published_at,
    source_type = EXCLUDED.source_type,
    chunk_text = EXCLUDED.chunk_text,
    embedding = EXCLUDED.embedding,
    embedding_model = EXCLUDED.embedding_model`, s.table),
		row.ArticleID, row.ChunkIndex, row.Author, row.Title, row.Summary, row.SourceLink,
		row.FetchedAt.UTC(), row.PublishedAt, row.SourceType, row.Text,
		pgvector.NewVector(row.Embedding), row.Model,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting chunk %s: %w", store.ErrPersistence, row.ChunkID(), err)
	}
	return nil
}

func operator(m store.Metric) (string, error) {
	switch m {
	case store.Euclidean:
		return "<->", nil
	case store.InnerProduct:
		return "<#>", nil
	case store.Cosine, "":
		return "<=>", nil
	}
	return "", fmt.Errorf("%w: %q", store.ErrUnknownMetric, m)
}

// Search orders by the pgvector distance operator, then by id so ties
// keep insertion order.
func (s *Store) Search(ctx context.Context, vec []float32, k int, metric store.Metric) ([]store.Hit, error) {
	op, err := operator(metric)
	if err != nil {
		return nil, err
	}
	hits := []store.Hit{}
	if k <= 0 {
		return hits, nil
	}
	if len(vec) != s.dimension {
		s.logger.Warn("query dimension differs from table", "query", len(vec), "table", s.dimension)
		return hits, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
SELECT article_id, chunk_index, author, title, summary, source_link, fetched_at,
       published_at, source_type, chunk_text, embedding, embedding_model,
       embedding %s $1 AS distance
FROM %s
ORDER BY distance, id
LIMIT $2`, op, s.table), pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			h      store.Hit
			emb    pgvector.Vector
			source *string
			model  *string
		)
		err := rows.Scan(&h.ArticleID, &h.ChunkIndex, &h.Author, &h.Title, &h.Summary,
			&h.SourceLink, &h.FetchedAt, &h.PublishedAt, &source, &h.Text, &emb, &model,
			&h.Distance)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		h.Embedding = emb.Slice()
		if source != nil {
			h.SourceType = *source
		}
		if model != nil {
			h.Model = *model
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return hits, nil
}

func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO load_runs (id, started_at, finished_at, embedding_model, articles,
                       attempted, succeeded, failed, skipped_articles)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Model, run.Articles,
		run.Attempted, run.Succeeded, run.Failed, run.SkippedArticles,
	)
	if err != nil {
		return fmt.Errorf("%w: recording run %s: %w", store.ErrPersistence, run.ID, err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	st := store.Stats{BySource: map[string]int{}}

	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*), COUNT(DISTINCT article_id) FROM %s", s.table,
	)).Scan(&st.Chunks, &st.Articles)
	if err != nil {
		return st, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
SELECT COALESCE(source_type, ''), COUNT(DISTINCT article_id)
FROM %s
GROUP BY source_type`, s.table))
	if err != nil {
		return st, fmt.Errorf("counting by source: %w", err)
	}
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("scanning source count: %w", err)
		}
		st.BySource[source] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	var (
		r     store.Run
		model *string
	)
	err = s.pool.QueryRow(ctx, `
SELECT id, started_at, finished_at, embedding_model, articles, attempted,
       succeeded, failed, skipped_articles
FROM load_runs
ORDER BY started_at DESC
LIMIT 1`).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &model, &r.Articles, &r.Attempted,
		&r.Succeeded, &r.Failed, &r.SkippedArticles)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return st, fmt.Errorf("querying last run: %w", err)
	default:
		if model != nil {
			r.Model = *model
		}
		st.LastRun = &r
	}
	return st, nil
}
