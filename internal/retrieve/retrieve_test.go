package retrieve

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/newsjuice/internal/embed"
	"github.com/TobiSchelling/newsjuice/internal/store"
	"github.com/TobiSchelling/newsjuice/internal/store/badger"
)

func setup(t *testing.T, texts ...string) *Retriever {
	t.Helper()
	e, err := embed.NewHashing(256)
	require.NoError(t, err)
	s, err := badger.Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		require.NoError(t, err)
		title := "Story"
		require.NoError(t, s.Upsert(ctx, store.Row{
			ArticleID:  "article",
			ChunkIndex: i,
			Title:      &title,
			SourceLink: "https://example.com/story",
			FetchedAt:  time.Now(),
			SourceType: "Harvard Gazette",
			Text:       text,
			Embedding:  vec,
		}))
	}
	return New(e, s, nil)
}

var corpus = []string{
	"The dining hall introduced a new vegetarian menu this fall.",
	"Seniors gathered in the Yard for the graduation ceremony on Thursday.",
	"The hockey team won its third straight game against Yale.",
	"A graduation speaker was announced by the university.",
	"Researchers published a study on ocean temperatures.",
}

func TestRetrieveTopK(t *testing.T) {
	r := setup(t, corpus...)

	results, err := r.Retrieve(context.Background(), Query{Text: "graduation ceremony"})
	require.NoError(t, err)
	require.Len(t, results, DefaultK)
	assert.Equal(t, "article:1", results[0].ChunkID)
	assert.Equal(t, "article:3", results[1].ChunkID)
	assert.Less(t, results[0].Distance, results[1].Distance)
	assert.Equal(t, "Story", results[0].Title)
}

func TestRetrieveIsDeterministic(t *testing.T) {
	r := setup(t, corpus...)
	ctx := context.Background()

	q := Query{Text: "hockey game", K: 3, Metric: store.Euclidean}
	first, err := r.Retrieve(ctx, q)
	require.NoError(t, err)
	second, err := r.Retrieve(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveEmptyStore(t *testing.T) {
	r := setup(t)

	results, err := r.Retrieve(context.Background(), Query{Text: "anything"})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieveErrors(t *testing.T) {
	r := setup(t, corpus...)
	ctx := context.Background()

	_, err := r.Retrieve(ctx, Query{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = r.Retrieve(ctx, Query{Text: "graduation", Metric: "jaccard"})
	assert.ErrorIs(t, err, store.ErrUnknownMetric)
}

func TestMarkdown(t *testing.T) {
	md := Markdown("graduation", []Result{{
		ChunkID:    "abc:0",
		Title:      "Commencement",
		SourceLink: "https://example.com/c",
		SourceType: "Harvard Gazette",
		Text:       "line one\nline two",
		Distance:   0.25,
	}})

	assert.Contains(t, md, `# Results for "graduation"`)
	assert.Contains(t, md, "## 1. Commencement")
	assert.Contains(t, md, "distance 0.2500")
	assert.Contains(t, md, "> line one\n> line two")
	assert.Contains(t, md, "(https://example.com/c)")

	empty := Markdown("nothing", nil)
	assert.True(t, strings.HasSuffix(empty, "No matching chunks.\n"))
}
