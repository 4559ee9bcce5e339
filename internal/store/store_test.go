package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	for _, name := range []string{"cosine", "euclidean", "inner_product"} {
		m, err := ParseMetric(name)
		require.NoError(t, err)
		assert.Equal(t, Metric(name), m)
	}

	_, err = ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	d, err := Distance(Euclidean, a, b)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, d, 1e-9)

	d, err = Distance(Cosine, a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-9)

	d, err = Distance(Cosine, a, a)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-9)

	d, err = Distance(InnerProduct, []float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, -11.0, d, 1e-9)

	d, err = Distance(Cosine, []float32{0, 0}, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-9)

	_, err = Distance(Cosine, a, []float32{1})
	assert.Error(t, err)

	_, err = Distance("bogus", a, b)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestTopKStableTies(t *testing.T) {
	hits := []Hit{
		{Row: Row{ArticleID: "a"}, Distance: 0.5},
		{Row: Row{ArticleID: "b"}, Distance: 0.1},
		{Row: Row{ArticleID: "c"}, Distance: 0.5},
		{Row: Row{ArticleID: "d"}, Distance: 0.1},
	}
	got := TopK(hits, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ArticleID)
	assert.Equal(t, "d", got[1].ArticleID)
	assert.Equal(t, "a", got[2].ArticleID)

	assert.Empty(t, TopK(nil, 2))
}

func TestCheckRow(t *testing.T) {
	assert.ErrorIs(t, CheckRow(Row{}), ErrPersistence)
	assert.ErrorIs(t, CheckRow(Row{ArticleID: "x"}), ErrPersistence)
	assert.ErrorIs(t, CheckRow(Row{ArticleID: "x", ChunkIndex: -1, Embedding: []float32{1}}), ErrPersistence)
	assert.NoError(t, CheckRow(Row{ArticleID: "x", Embedding: []float32{1}}))
	assert.Equal(t, "x:3", Row{ArticleID: "x", ChunkIndex: 3}.ChunkID())
}
