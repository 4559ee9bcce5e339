package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/TobiSchelling/newsjuice/internal/store"
)

func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	val, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("%w: encoding run %s: %w", store.ErrPersistence, run.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.StartedAt, run.ID), val)
	})
	if err != nil {
		return fmt.Errorf("%w: writing run %s: %w", store.ErrPersistence, run.ID, err)
	}
	return nil
}

// LastRun returns the run with the latest start time, or nil if none.
func (s *Store) LastRun(ctx context.Context) (*store.Run, error) {
	var last *store.Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append([]byte(runPrefix), 0xFF))
		if !it.Valid() {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var r store.Run
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			last = &r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading last run: %w", err)
	}
	return last, nil
}
