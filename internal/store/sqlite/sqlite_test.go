package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/embed"
	"github.com/TobiSchelling/newsjuice/internal/store"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(s string) *string { return &s }

func testRow(articleID string, index int, text string, vec []float32) store.Row {
	return store.Row{
		ArticleID:  articleID,
		ChunkIndex: index,
		Title:      ptr("Title " + articleID),
		SourceLink: "https://example.com/" + articleID,
		FetchedAt:  time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceType: "Harvard Gazette",
		Text:       text,
		Embedding:  vec,
	}
}

func TestMigrateNewDB(t *testing.T) {
	s := openTestStore(t)

	version, err := getSchemaVersion(s.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateUnversionedDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "unversioned.db")

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	_, err = raw.Exec(`CREATE TABLE chunks_vector (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		author TEXT,
		title TEXT,
		summary TEXT,
		source_link TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		published_at TEXT,
		source_type TEXT,
		chunk_text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		dimension INTEGER NOT NULL,
		embedding_model TEXT,
		UNIQUE (article_id, chunk_index)
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	raw.Close()

	s, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	version, err := getSchemaVersion(s.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	s1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	version, err := getSchemaVersion(s2.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testRow("a1", 0, "first version", []float32{1, 0})
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := testRow("a1", 0, "second version", []float32{0, 1})
	second.Author = ptr("Jane Doe")
	published := time.Date(2025, 4, 30, 9, 0, 0, 0, time.UTC)
	second.PublishedAt = &published
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := s.ChunksForArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("ChunksForArticle: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.Text != "second version" {
		t.Errorf("expected latest text, got %q", got.Text)
	}
	if got.Author == nil || *got.Author != "Jane Doe" {
		t.Errorf("expected latest author, got %v", got.Author)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(published) {
		t.Errorf("expected published_at %v, got %v", published, got.PublishedAt)
	}
	if len(got.Embedding) != 2 || got.Embedding[1] != 1 {
		t.Errorf("expected latest embedding, got %v", got.Embedding)
	}
}

func TestUpsertRejectsInvalidRow(t *testing.T) {
	s := openTestStore(t)

	err := s.Upsert(context.Background(), store.Row{ArticleID: "x", Text: "no vector"})
	if !errors.Is(err, store.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := openTestStore(t)

	hits, err := s.Search(context.Background(), []float32{1, 0}, 2, store.Cosine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil result, got %v", hits)
	}
}

func TestSearchUnknownMetric(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Search(context.Background(), []float32{1}, 2, "manhattan")
	if !errors.Is(err, store.ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestSearchRanksClosestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	emb, err := embed.NewHashing(256)
	if err != nil {
		t.Fatalf("NewHashing: %v", err)
	}

	texts := []string{
		"The dining hall introduced a new vegetarian menu this fall.",
		"Seniors gathered in the Yard for the graduation ceremony on Thursday.",
		"The hockey team won its third straight game against Yale.",
		"A graduation speaker was announced by the university.",
		"Researchers published a study on ocean temperatures.",
	}
	for i, text := range texts {
		vec, err := emb.EmbedText(ctx, text)
		if err != nil {
			t.Fatalf("EmbedText: %v", err)
		}
		if err := s.Upsert(ctx, testRow("doc", i, text, vec)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	query, err := emb.EmbedText(ctx, "graduation ceremony")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}

	for _, metric := range []store.Metric{store.Cosine, store.Euclidean} {
		hits, err := s.Search(ctx, query, 2, metric)
		if err != nil {
			t.Fatalf("Search(%s): %v", metric, err)
		}
		if len(hits) != 2 {
			t.Fatalf("Search(%s): expected 2 hits, got %d", metric, len(hits))
		}
		if !(hits[0].Distance < hits[1].Distance) {
			t.Errorf("Search(%s): expected strictly ascending distances, got %v, %v", metric, hits[0].Distance, hits[1].Distance)
		}
		if hits[0].ChunkIndex != 1 {
			t.Errorf("Search(%s): expected ceremony chunk first, got index %d", metric, hits[0].ChunkIndex)
		}
		if hits[1].ChunkIndex != 3 {
			t.Errorf("Search(%s): expected speaker chunk second, got index %d", metric, hits[1].ChunkIndex)
		}
	}

	again, err := s.Search(ctx, query, 2, store.Cosine)
	if err != nil {
		t.Fatalf("repeat search: %v", err)
	}
	first, _ := s.Search(ctx, query, 2, store.Cosine)
	for i := range again {
		if again[i].ChunkID() != first[i].ChunkID() || again[i].Distance != first[i].Distance {
			t.Errorf("repeated query differs at %d", i)
		}
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Upsert(ctx, testRow(id, 0, "same", []float32{1, 0})); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 3, store.Cosine)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"c", "a", "b"}
	for i, h := range hits {
		if h.ArticleID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], h.ArticleID)
		}
	}
}

func TestSearchSkipsOtherDimensions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Upsert(ctx, testRow("small", 0, "two dims", []float32{1, 0}))
	s.Upsert(ctx, testRow("large", 0, "three dims", []float32{1, 0, 0}))

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 5, store.Euclidean)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ArticleID != "large" {
		t.Errorf("expected only the 3-dim row, got %+v", hits)
	}
}

func TestRecordRunAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Chunks != 0 || st.LastRun != nil {
		t.Errorf("expected empty stats, got %+v", st)
	}

	s.Upsert(ctx, testRow("a", 0, "x", []float32{1}))
	s.Upsert(ctx, testRow("a", 1, "y", []float32{1}))
	s.Upsert(ctx, testRow("b", 0, "z", []float32{1}))

	started := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	run := store.Run{
		ID:         "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Model:      "hashing-fnv1a/1",
		Articles:   2,
		Attempted:  3,
		Succeeded:  3,
	}
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	st, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Chunks != 3 || st.Articles != 2 {
		t.Errorf("expected 3 chunks in 2 articles, got %d in %d", st.Chunks, st.Articles)
	}
	if st.BySource["Harvard Gazette"] != 2 {
		t.Errorf("expected 2 Gazette articles, got %v", st.BySource)
	}
	if st.LastRun == nil || st.LastRun.ID != "run-1" || st.LastRun.Succeeded != 3 {
		t.Errorf("unexpected last run: %+v", st.LastRun)
	}
	if !st.LastRun.StartedAt.Equal(started) {
		t.Errorf("expected started_at %v, got %v", started, st.LastRun.StartedAt)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0, -1.5, 3.25, 1e-7}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("expected %d values, got %d", len(v), len(got))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: expected %v, got %v", i, v[i], got[i])
		}
	}
}
