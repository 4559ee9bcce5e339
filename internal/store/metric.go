package store

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Metric names a distance function. Every metric orders closer rows first.
type Metric string

const (
	Cosine       Metric = "cosine"
	Euclidean    Metric = "euclidean"
	InnerProduct Metric = "inner_product"
)

// ParseMetric maps a name to a Metric. The empty string means Cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "":
		return Cosine, nil
	case Cosine, Euclidean, InnerProduct:
		return Metric(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Distance computes the metric between two equal-length vectors:
// L2 for Euclidean, the negated dot product for InnerProduct and
// 1 - cos for Cosine. A zero vector is at cosine distance 1 from anything.
func Distance(m Metric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		d := x - y
		sq += d * d
	}

	switch m {
	case Euclidean:
		return math.Sqrt(sq), nil
	case InnerProduct:
		return -dot, nil
	case Cosine, "":
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
}

// TopK sorts hits by distance, keeping the incoming order for ties, and
// truncates to k. Callers pass hits in insertion order.
func TopK(hits []Hit, k int) []Hit {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
