package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/TobiSchelling/newsjuice/internal/config"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Hashing is an offline embedder: each lowercase token is hashed with
// FNV-1a into one of dim buckets and the counts are L2-normalized. Texts
// sharing words land close together under cosine distance.
type Hashing struct {
	dim int
}

func NewHashing(dim int) (*Hashing, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", config.ErrConfiguration, dim)
	}
	return &Hashing{dim: dim}, nil
}

func (h *Hashing) Model() string {
	return fmt.Sprintf("hashing-fnv1a/%d", h.dim)
}

func (h *Hashing) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return single(ctx, h, text)
}

func (h *Hashing) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	counts := make([]float64, h.dim)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		f := fnv.New64a()
		f.Write([]byte(tok))
		counts[f.Sum64()%uint64(h.dim)]++
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)

	v := make([]float32, h.dim)
	if norm == 0 {
		return v
	}
	for i, c := range counts {
		v[i] = float32(c / norm)
	}
	return v
}
