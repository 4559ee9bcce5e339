package load

import "errors"

var (
	ErrChunkerRequired  = errors.New("load: chunker is required")
	ErrEmbedderRequired = errors.New("load: embedder is required")
	ErrStoreRequired    = errors.New("load: store is required")
)
