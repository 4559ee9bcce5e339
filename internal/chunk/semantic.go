package chunk

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+["'”’)\]]*\s+|\n+`)

// Semantic starts a new chunk where the embedding distance between adjacent
// sentences is unusually large. The break threshold is a percentile of all
// adjacent distances in the article.
type Semantic struct {
	embedder   Embedder
	size       int
	percentile float64
}

// NewSemantic creates an embedding-driven chunker. Groups longer than size
// are re-packed at sentence boundaries.
func NewSemantic(embedder Embedder, size int, percentile float64) (*Semantic, error) {
	if err := checkSize(size, 0); err != nil {
		return nil, err
	}
	if percentile <= 0 || percentile > 100 {
		percentile = 95
	}
	return &Semantic{embedder: embedder, size: size, percentile: percentile}, nil
}

func (s *Semantic) Chunk(ctx context.Context, text string) ([]string, error) {
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return pack(sentences, s.size), nil
	}

	vecs, err := s.embedder.EmbedTexts(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(vecs) != len(sentences) {
		return nil, fmt.Errorf("embedding sentences: got %d vectors for %d sentences", len(vecs), len(sentences))
	}

	distances := make([]float64, len(sentences)-1)
	for i := range distances {
		distances[i] = 1 - cosine(vecs[i], vecs[i+1])
	}
	threshold := percentile(distances, s.percentile)

	var chunks []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			chunks = append(chunks, pack(sentences[start:i+1], s.size)...)
			start = i + 1
		}
	}
	chunks = append(chunks, pack(sentences[start:], s.size)...)
	return chunks, nil
}

func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// percentile interpolates linearly between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}
