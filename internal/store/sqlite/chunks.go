package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/store"
)

const upsertChunkSQL = `
INSERT INTO chunks_vector (
    article_id, chunk_index, author, title, summary, source_link, fetched_at,
    published_at, source_type, chunk_text, embedding, dimension, embedding_model
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (article_id, chunk_index) DO UPDATE SET
    author = excluded.author,
    title = excluded.title,
    summary = excluded.summary,
    source_link = excluded.source_link,
    fetched_at = excluded.fetched_at,
    published_at = excluded.published_at,
    source_type = excluded.source_type,
    chunk_text = excluded.chunk_text,
    embedding = excluded.embedding,
    dimension = excluded.dimension,
    embedding_model = excluded.embedding_model`

// Upsert writes one row in its own statement. An update keeps the row's
// original position for tie-breaking.
func (s *Store) Upsert(ctx context.Context, row store.Row) error {
	if err := store.CheckRow(row); err != nil {
		return err
	}

	_, err := s.conn.ExecContext(ctx, upsertChunkSQL,
		row.ArticleID, row.ChunkIndex, row.Author, row.Title, row.Summary,
		row.SourceLink, formatTime(row.FetchedAt), formatTimePtr(row.PublishedAt),
		row.SourceType, row.Text, encodeVector(row.Embedding), len(row.Embedding), row.Model,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting chunk %s: %w", store.ErrPersistence, row.ChunkID(), err)
	}
	return nil
}

// Search scans every row. There is no vector index; rows of a different
// dimension than vec are skipped.
func (s *Store) Search(ctx context.Context, vec []float32, k int, metric store.Metric) ([]store.Hit, error) {
	if _, err := store.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []store.Hit{}, nil
	}

	rows, err := s.conn.QueryContext(ctx, `
SELECT article_id, chunk_index, author, title, summary, source_link, fetched_at,
       published_at, source_type, chunk_text, embedding, embedding_model
FROM chunks_vector
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	hits := []store.Hit{}
	skipped := 0
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		if len(row.Embedding) != len(vec) {
			skipped++
			continue
		}
		d, err := store.Distance(metric, vec, row.Embedding)
		if err != nil {
			return nil, err
		}
		hits = append(hits, store.Hit{Row: row, Distance: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("skipped rows with a different embedding dimension", "count", skipped, "dimension", len(vec))
	}

	return store.TopK(hits, k), nil
}

// Stats counts chunks and articles and returns the most recent load run.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	st := store.Stats{BySource: map[string]int{}}

	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT article_id) FROM chunks_vector",
	).Scan(&st.Chunks, &st.Articles)
	if err != nil {
		return st, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `
SELECT COALESCE(source_type, ''), COUNT(DISTINCT article_id)
FROM chunks_vector
GROUP BY source_type`)
	if err != nil {
		return st, fmt.Errorf("counting by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return st, fmt.Errorf("scanning source count: %w", err)
		}
		st.BySource[source] = n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	last, err := s.LastRun(ctx)
	if err != nil {
		return st, err
	}
	st.LastRun = last
	return st, nil
}

// ChunksForArticle returns the stored rows of one article in chunk order.
func (s *Store) ChunksForArticle(ctx context.Context, articleID string) ([]store.Row, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT article_id, chunk_index, author, title, summary, source_link, fetched_at,
       published_at, source_type, chunk_text, embedding, embedding_model
FROM chunks_vector
WHERE article_id = ?
ORDER BY chunk_index`, articleID)
	if err != nil {
		return nil, fmt.Errorf("querying article chunks: %w", err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(rows *sql.Rows) (store.Row, error) {
	var (
		r                         store.Row
		author, title, summary    sql.NullString
		fetched                   string
		published, sourceType, mo sql.NullString
		blob                      []byte
	)
	err := rows.Scan(&r.ArticleID, &r.ChunkIndex, &author, &title, &summary, &r.SourceLink,
		&fetched, &published, &sourceType, &r.Text, &blob, &mo)
	if err != nil {
		return r, fmt.Errorf("scanning chunk: %w", err)
	}

	r.Author = nullString(author)
	r.Title = nullString(title)
	r.Summary = nullString(summary)
	r.SourceType = sourceType.String
	r.Model = mo.String
	r.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	if published.Valid {
		if t, err := time.Parse(time.RFC3339Nano, published.String); err == nil {
			r.PublishedAt = &t
		}
	}
	r.Embedding = decodeVector(blob)
	return r, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
