// Package load chunks, embeds and stores articles from the interchange log.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/TobiSchelling/newsjuice/internal/article"
	"github.com/TobiSchelling/newsjuice/internal/chunk"
	"github.com/TobiSchelling/newsjuice/internal/embed"
	"github.com/TobiSchelling/newsjuice/internal/store"
)

// Result counts chunk rows. Attempted = Succeeded + Failed. Articles whose
// body yields no chunks are counted in SkippedArticles only.
type Result struct {
	RunID           string
	Articles        int
	Attempted       int
	Succeeded       int
	Failed          int
	SkippedArticles int
}

// Loader moves articles into the vector store. Chunking and embedding run
// on a bounded worker pool; all writes happen on the calling goroutine.
type Loader struct {
	chunker  chunk.Chunker
	embedder embed.Embedder
	store    store.Store
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithWorkers sets the chunk/embed pool size. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n < 1 {
			n = 1
		}
		l.workers = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(c chunk.Chunker, e embed.Embedder, s store.Store, opts ...Option) (*Loader, error) {
	if c == nil {
		return nil, ErrChunkerRequired
	}
	if e == nil {
		return nil, ErrEmbedderRequired
	}
	if s == nil {
		return nil, ErrStoreRequired
	}

	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	l := &Loader{
		chunker:  c,
		embedder: e,
		store:    s,
		workers:  workers,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "loader")
	return l, nil
}

// prepared is one article after chunking and embedding.
type prepared struct {
	rec      *article.Record
	id       string
	chunks   []string
	vectors  [][]float32
	chunkErr error
	embedErr error
}

// Load processes every record and records a run summary in the store.
// Per-row failures are counted, not returned; the error is non-nil only
// when the worker pool cannot be created.
func (l *Loader) Load(ctx context.Context, records []*article.Record) (Result, error) {
	res := Result{RunID: uuid.NewString(), Articles: len(records)}
	started := l.now()

	pool, err := ants.NewPool(l.workers)
	if err != nil {
		return res, err
	}
	defer pool.Release()

	results := make(chan prepared, len(records))
	var wg sync.WaitGroup
	for _, rec := range records {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results <- l.prepare(ctx, rec)
		}); err != nil {
			wg.Done()
			results <- prepared{rec: rec, id: rec.ID(), chunkErr: err}
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for p := range results {
		l.write(ctx, p, &res)
	}

	run := store.Run{
		ID:              res.RunID,
		StartedAt:       started,
		FinishedAt:      l.now(),
		Model:           l.embedder.Model(),
		Articles:        res.Articles,
		Attempted:       res.Attempted,
		Succeeded:       res.Succeeded,
		Failed:          res.Failed,
		SkippedArticles: res.SkippedArticles,
	}
	if err := l.store.RecordRun(ctx, run); err != nil {
		l.logger.Warn("failed to record load run", "run", run.ID, "error", err)
	}

	l.logger.Info("load complete",
		"run", res.RunID,
		"articles", res.Articles,
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped_articles", res.SkippedArticles,
	)
	return res, nil
}

func (l *Loader) prepare(ctx context.Context, rec *article.Record) prepared {
	p := prepared{rec: rec, id: rec.ID()}

	p.chunks, p.chunkErr = l.chunker.Chunk(ctx, rec.Body)
	if p.chunkErr != nil || len(p.chunks) == 0 {
		return p
	}
	p.vectors, p.embedErr = l.embedder.EmbedTexts(ctx, p.chunks)
	if p.embedErr == nil && len(p.vectors) != len(p.chunks) {
		p.embedErr = fmt.Errorf("embedder returned %d vectors for %d chunks", len(p.vectors), len(p.chunks))
	}
	return p
}

// write upserts one article's rows in chunk order.
func (l *Loader) write(ctx context.Context, p prepared, res *Result) {
	url := p.rec.URL
	switch {
	case p.chunkErr != nil:
		res.SkippedArticles++
		l.logger.Warn("chunking failed, skipping article", "url", url, "error", p.chunkErr)
		return
	case len(p.chunks) == 0:
		res.SkippedArticles++
		l.logger.Debug("article produced no chunks", "url", url)
		return
	case p.embedErr != nil:
		res.Attempted += len(p.chunks)
		res.Failed += len(p.chunks)
		l.logger.Warn("embedding failed", "url", url, "chunks", len(p.chunks), "error", p.embedErr)
		return
	}

	for i, text := range p.chunks {
		res.Attempted++
		row := store.Row{
			ArticleID:   p.id,
			ChunkIndex:  i,
			Author:      p.rec.Author,
			Title:       p.rec.Title,
			Summary:     p.rec.Summary,
			SourceLink:  article.Canonicalize(url),
			FetchedAt:   p.rec.FetchedAt,
			PublishedAt: p.rec.PublishedAt,
			SourceType:  p.rec.SourceType,
			Text:        text,
			Embedding:   p.vectors[i],
			Model:       l.embedder.Model(),
		}
		if err := l.store.Upsert(ctx, row); err != nil {
			res.Failed++
			l.logger.Warn("failed to store chunk", "chunk", row.ChunkID(), "error", err)
			continue
		}
		res.Succeeded++
	}
	l.logger.Debug("stored article", "url", url, "id", p.id, "chunks", len(p.chunks))
}
