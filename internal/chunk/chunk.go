// Package chunk splits article bodies into ordered, bounded segments.
package chunk

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TobiSchelling/newsjuice/internal/config"
)

// Chunker splits one article body. The returned slice order is the chunk
// index order; no element is empty.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]string, error)
}

// Embedder is what the semantic strategy needs from an embedding model.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Options selects and parameterizes a strategy.
type Options struct {
	Strategy             string
	Size                 int
	Overlap              int
	BreakpointPercentile float64
}

// New builds the configured strategy. The embedder is only used by the
// semantic strategy and may be nil otherwise.
func New(opts Options, embedder Embedder) (Chunker, error) {
	switch opts.Strategy {
	case "", "fixed":
		return NewFixed(opts.Size, opts.Overlap)
	case "recursive":
		return NewRecursive(opts.Size, opts.Overlap)
	case "semantic":
		if embedder == nil {
			return nil, fmt.Errorf("%w: semantic chunking needs an embedder", config.ErrConfiguration)
		}
		return NewSemantic(embedder, opts.Size, opts.BreakpointPercentile)
	default:
		return nil, fmt.Errorf("%w: unknown chunking strategy %q", config.ErrConfiguration, opts.Strategy)
	}
}

func checkSize(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", config.ErrConfiguration, overlap, size)
	}
	return nil
}

// windows cuts text into rune slices of size, each starting size-overlap
// after the previous one. The last slice may be shorter.
func windows(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	var out []string
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			return out
		}
	}
}

// compact drops whitespace-only pieces.
func compact(pieces []string) []string {
	out := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// pack joins consecutive units with a space while they fit in size. A unit
// longer than size is cut into raw windows.
func pack(units []string, size int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, u := range units {
		n := utf8.RuneCountInString(u)
		switch {
		case n > size:
			flush()
			out = append(out, windows(u, size, 0)...)
		case curLen == 0:
			cur.WriteString(u)
			curLen = n
		case curLen+1+n <= size:
			cur.WriteByte(' ')
			cur.WriteString(u)
			curLen += 1 + n
		default:
			flush()
			cur.WriteString(u)
			curLen = n
		}
	}
	flush()
	return out
}
