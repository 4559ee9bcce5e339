package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/newsjuice/internal/store"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func row(articleID string, index int, vec []float32) store.Row {
	title := "Title " + articleID
	return store.Row{
		ArticleID:  articleID,
		ChunkIndex: index,
		Title:      &title,
		SourceLink: "https://example.com/" + articleID,
		FetchedAt:  time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceType: "The Harvard Crimson",
		Text:       "chunk text",
		Embedding:  vec,
	}
}

func TestUpsertReplacesRow(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, row("a", 0, []float32{1, 0})))
	updated := row("a", 0, []float32{0, 1})
	updated.Text = "latest"
	require.NoError(t, s.Upsert(ctx, updated))

	got, err := s.Get("a", 0)
	require.NoError(t, err)
	assert.Equal(t, "latest", got.Text)
	assert.Equal(t, []float32{0, 1}, got.Embedding)
	assert.Equal(t, "Title a", *got.Title)
	assert.Nil(t, got.Author)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Chunks)
}

func TestUpsertInvalidRow(t *testing.T) {
	s := openMemory(t)
	err := s.Upsert(context.Background(), store.Row{ArticleID: "a"})
	assert.ErrorIs(t, err, store.ErrPersistence)
}

func TestSearch(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	hits, err := s.Search(ctx, []float32{1, 0}, 2, store.Cosine)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	require.NoError(t, s.Upsert(ctx, row("far", 0, []float32{0, 1})))
	require.NoError(t, s.Upsert(ctx, row("near", 0, []float32{1, 0.1})))
	require.NoError(t, s.Upsert(ctx, row("mid", 0, []float32{1, 1})))
	require.NoError(t, s.Upsert(ctx, row("odd", 0, []float32{1, 0, 0})))

	hits, err = s.Search(ctx, []float32{1, 0}, 2, store.Cosine)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ArticleID)
	assert.Equal(t, "mid", hits[1].ArticleID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)

	hits, err = s.Search(ctx, []float32{1, 0}, 10, store.InnerProduct)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	_, err = s.Search(ctx, []float32{1, 0}, 2, "hamming")
	assert.ErrorIs(t, err, store.ErrUnknownMetric)
}

func TestSearchTiesFollowKeyOrder(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.Upsert(ctx, row(id, 0, []float32{1, 1})))
	}
	hits, err := s.Search(ctx, []float32{1, 1}, 3, store.Euclidean)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{hits[0].ArticleID, hits[1].ArticleID, hits[2].ArticleID})
}

func TestRunsAndStats(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, store.Run{ID: "old", StartedAt: base, Attempted: 1}))
	require.NoError(t, s.RecordRun(ctx, store.Run{ID: "new", StartedAt: base.Add(time.Hour), Attempted: 5, Succeeded: 4, Failed: 1}))

	require.NoError(t, s.Upsert(ctx, row("a", 0, []float32{1})))
	require.NoError(t, s.Upsert(ctx, row("a", 1, []float32{1})))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Chunks)
	assert.Equal(t, 1, st.Articles)
	assert.Equal(t, map[string]int{"The Harvard Crimson": 1}, st.BySource)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "new", st.LastRun.ID)
	assert.Equal(t, 4, st.LastRun.Succeeded)
}
