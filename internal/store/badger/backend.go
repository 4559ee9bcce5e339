// Package badger is an embedded key-value vector store. Chunks live under
// chunk/<article_id>/<index> and search is a prefix scan.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/TobiSchelling/newsjuice/internal/config"
	"github.com/TobiSchelling/newsjuice/internal/store"
)

// Store wraps a BadgerDB instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a BadgerDB store in dir, creating it if needed. An empty dir
// with inMemory set gives a throwaway store for tests.
func Open(dir string, inMemory bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger-store")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: creating store directory: %v", config.ErrConfiguration, err)
			}
		case err != nil:
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		case !info.IsDir():
			return nil, fmt.Errorf("%w: %s is not a directory", config.ErrConfiguration, dir)
		}
		opts = badger.DefaultOptions(dir)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger: %v", config.ErrConfiguration, err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// chunkRecord is the JSON value stored under a chunk key.
type chunkRecord struct {
	ArticleID   string    `json:"article_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Author      *string   `json:"author"`
	Title       *string   `json:"title"`
	Summary     *string   `json:"summary"`
	SourceLink  string    `json:"source_link"`
	FetchedAt   string    `json:"fetched_at"`
	PublishedAt *string   `json:"published_at"`
	SourceType  string    `json:"source_type"`
	Text        string    `json:"chunk_text"`
	Embedding   []float32 `json:"embedding"`
	Model       string    `json:"embedding_model,omitempty"`
}

func (s *Store) Upsert(ctx context.Context, row store.Row) error {
	if err := store.CheckRow(row); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}

	val, err := json.Marshal(toRecord(row))
	if err != nil {
		return fmt.Errorf("%w: encoding chunk %s: %w", store.ErrPersistence, row.ChunkID(), err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(row.ArticleID, row.ChunkIndex), val)
	})
	if err != nil {
		return fmt.Errorf("%w: writing chunk %s: %w", store.ErrPersistence, row.ChunkID(), err)
	}
	return nil
}

// Search scans every chunk in key order. Rows whose dimension differs
// from vec are skipped.
func (s *Store) Search(ctx context.Context, vec []float32, k int, metric store.Metric) ([]store.Hit, error) {
	if _, err := store.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	hits := []store.Hit{}
	if k <= 0 {
		return hits, nil
	}

	skipped := 0
	err := s.scanChunks(ctx, func(row store.Row) error {
		if len(row.Embedding) != len(vec) {
			skipped++
			return nil
		}
		d, err := store.Distance(metric, vec, row.Embedding)
		if err != nil {
			return err
		}
		hits = append(hits, store.Hit{Row: row, Distance: d})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped rows with a different embedding dimension", "count", skipped, "dimension", len(vec))
	}
	return store.TopK(hits, k), nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	st := store.Stats{BySource: map[string]int{}}
	articles := map[string]string{}

	err := s.scanChunks(ctx, func(row store.Row) error {
		st.Chunks++
		articles[row.ArticleID] = row.SourceType
		return nil
	})
	if err != nil {
		return st, err
	}
	st.Articles = len(articles)
	for _, source := range articles {
		st.BySource[source]++
	}

	last, err := s.LastRun(ctx)
	if err != nil {
		return st, err
	}
	st.LastRun = last
	return st, nil
}

// Get returns one chunk row.
func (s *Store) Get(articleID string, index int) (store.Row, error) {
	var row store.Row
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(articleID, index))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var rec chunkRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			row = rec.row()
			return nil
		})
	})
	return row, err
}

func (s *Store) scanChunks(ctx context.Context, fn func(store.Row) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec chunkRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			if err := fn(rec.row()); err != nil {
				return err
			}
		}
		return nil
	})
}
