package chunk

import "context"

// Fixed cuts exact-size character windows with a fixed overlap.
type Fixed struct {
	size    int
	overlap int
}

// NewFixed creates a sliding-window chunker. overlap must be smaller than
// size.
func NewFixed(size, overlap int) (*Fixed, error) {
	if err := checkSize(size, overlap); err != nil {
		return nil, err
	}
	return &Fixed{size: size, overlap: overlap}, nil
}

func (f *Fixed) Chunk(_ context.Context, text string) ([]string, error) {
	return compact(windows(text, f.size, f.overlap)), nil
}
