package store

import "errors"

var (
	// ErrPersistence wraps a failed row write. The loader counts it and
	// moves on to the next row.
	ErrPersistence = errors.New("persistence error")

	// ErrUnknownMetric rejects a distance metric name the store does not
	// support.
	ErrUnknownMetric = errors.New("unknown distance metric")
)
