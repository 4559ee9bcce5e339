// Package retrieve answers top-K similarity queries over the vector store.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/newsjuice/internal/embed"
	"github.com/TobiSchelling/newsjuice/internal/store"
)

// DefaultK is the number of results returned when a query leaves K unset.
const DefaultK = 2

// ErrEmptyQuery is returned for a blank query text.
var ErrEmptyQuery = errors.New("retrieve: empty query")

type Query struct {
	Text   string
	K      int
	Metric store.Metric
}

type Result struct {
	ChunkID     string  `json:"chunk_id"`
	ArticleID   string  `json:"article_id"`
	ChunkIndex  int     `json:"chunk_index"`
	Title       string  `json:"title,omitempty"`
	Author      string  `json:"author,omitempty"`
	SourceLink  string  `json:"source_link"`
	SourceType  string  `json:"source_type,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Text        string  `json:"chunk_text"`
	Distance    float64 `json:"distance"`
}

// Retriever embeds queries with the same embedder the loader used.
type Retriever struct {
	embedder embed.Embedder
	store    store.Store
	logger   *slog.Logger
}

func New(e embed.Embedder, s store.Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: e, store: s, logger: logger.With("component", "retriever")}
}

// Retrieve returns up to K chunks by ascending distance. An empty store
// yields an empty, non-nil slice.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	metric, err := store.ParseMetric(string(q.Metric))
	if err != nil {
		return nil, err
	}
	k := q.K
	if k <= 0 {
		k = DefaultK
	}

	vec, err := r.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := r.store.Search(ctx, vec, k, metric)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}
	r.logger.Debug("query answered", "k", k, "metric", metric, "hits", len(hits))

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		res := Result{
			ChunkID:    h.ChunkID(),
			ArticleID:  h.ArticleID,
			ChunkIndex: h.ChunkIndex,
			SourceLink: h.SourceLink,
			SourceType: h.SourceType,
			Text:       h.Text,
			Distance:   h.Distance,
		}
		if h.Title != nil {
			res.Title = *h.Title
		}
		if h.Author != nil {
			res.Author = *h.Author
		}
		if h.PublishedAt != nil {
			res.PublishedAt = h.PublishedAt.Format("2006-01-02")
		}
		results = append(results, res)
	}
	return results, nil
}
