package chunk

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// separators are tried in order: paragraph, line, sentence, word, then raw
// characters.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Recursive splits at the coarsest boundary that keeps pieces within size.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

// NewRecursive creates a boundary-aware chunker.
func NewRecursive(size, overlap int) (*Recursive, error) {
	if err := checkSize(size, overlap); err != nil {
		return nil, err
	}
	return &Recursive{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

func (r *Recursive) Chunk(_ context.Context, text string) ([]string, error) {
	pieces, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("recursive split: %w", err)
	}
	return compact(pieces), nil
}
