// Package store defines the vector store contract shared by the sqlite,
// postgres and badger backends.
package store

import (
	"context"
	"fmt"
	"time"
)

// Row is one chunk of one article together with its embedding. Rows are
// unique on (ArticleID, ChunkIndex).
type Row struct {
	ArticleID   string
	ChunkIndex  int
	Author      *string
	Title       *string
	Summary     *string
	SourceLink  string
	FetchedAt   time.Time
	PublishedAt *time.Time
	SourceType  string
	Text        string
	Embedding   []float32
	Model       string
}

// ChunkID is "<article_id>:<chunk_index>".
func (r Row) ChunkID() string {
	return ChunkID(r.ArticleID, r.ChunkIndex)
}

func ChunkID(articleID string, index int) string {
	return fmt.Sprintf("%s:%d", articleID, index)
}

// Hit is a search result. Lower Distance is closer under every metric.
type Hit struct {
	Row
	Distance float64
}

// Run summarizes one load batch.
type Run struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	Model           string
	Articles        int
	Attempted       int
	Succeeded       int
	Failed          int
	SkippedArticles int
}

type Stats struct {
	Chunks   int
	Articles int
	BySource map[string]int
	LastRun  *Run
}

// Store persists chunk rows and answers nearest-neighbour queries.
type Store interface {
	// Upsert inserts or replaces the row keyed by (ArticleID, ChunkIndex).
	// Failures wrap ErrPersistence.
	Upsert(ctx context.Context, row Row) error
	// Search returns at most k rows ordered by ascending distance. Ties
	// keep insertion order. An empty store yields an empty slice.
	Search(ctx context.Context, vec []float32, k int, metric Metric) ([]Hit, error)
	RecordRun(ctx context.Context, run Run) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// CheckRow rejects rows that cannot be stored.
func CheckRow(row Row) error {
	switch {
	case row.ArticleID == "":
		return fmt.Errorf("%w: row has no article id", ErrPersistence)
	case row.ChunkIndex < 0:
		return fmt.Errorf("%w: negative chunk index %d", ErrPersistence, row.ChunkIndex)
	case len(row.Embedding) == 0:
		return fmt.Errorf("%w: chunk %s has no embedding", ErrPersistence, row.ChunkID())
	}
	return nil
}
