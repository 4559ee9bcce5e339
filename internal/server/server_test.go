package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/embed"
	"github.com/TobiSchelling/newsjuice/internal/retrieve"
	"github.com/TobiSchelling/newsjuice/internal/store"
	"github.com/TobiSchelling/newsjuice/internal/store/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	e, err := embed.NewHashing(64)
	if err != nil {
		t.Fatalf("NewHashing: %v", err)
	}

	ctx := context.Background()
	for i, text := range []string{
		"The graduation ceremony drew thousands to the Yard.",
		"The museum opened a new exhibit on ancient maps.",
	} {
		vec, _ := e.EmbedText(ctx, text)
		title := "Story"
		err := st.Upsert(ctx, store.Row{
			ArticleID:  "a",
			ChunkIndex: i,
			Title:      &title,
			SourceLink: "https://example.com/story",
			FetchedAt:  time.Now(),
			Text:       text,
			Embedding:  vec,
		})
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	srv, err := New(retrieve.New(e, st, nil), st, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="q"`) {
		t.Error("expected search form in response body")
	}
	if !strings.Contains(body, "2 chunks from 1 articles") {
		t.Error("expected store stats in footer")
	}
}

func TestIndexRendersResults(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/?q=graduation+ceremony&k=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h2>1. Story</h2>") {
		t.Errorf("expected rendered markdown heading, got:\n%s", body)
	}
	if !strings.Contains(body, "graduation ceremony drew thousands") {
		t.Error("expected matching chunk text")
	}
	if strings.Contains(body, "ancient maps") {
		t.Error("expected k=1 to limit results")
	}
}

func TestIndexShowsQueryErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/?q=maps&metric=manhattan")
	if !strings.Contains(rec.Body.String(), `class="error"`) {
		t.Error("expected error message for unknown metric")
	}
}

func TestAPISearch(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/search?q=ancient+maps&k=2&metric=euclidean")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Query   string            `json:"query"`
		Results []retrieve.Result `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].ChunkID != "a:1" {
		t.Errorf("expected maps chunk first, got %s", resp.Results[0].ChunkID)
	}
}

func TestAPISearchBadRequest(t *testing.T) {
	srv := newTestServer(t)

	for _, target := range []string{"/api/search", "/api/search?q=x&metric=bogus"} {
		rec := get(t, srv, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestStaticAndNotFound(t *testing.T) {
	srv := newTestServer(t)

	if rec := get(t, srv, "/static/style.css"); rec.Code != http.StatusOK {
		t.Errorf("expected stylesheet, got %d", rec.Code)
	}
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := string(renderMarkdown("## Hello\n\n> quoted"))
	if !strings.Contains(got, "<h2>Hello</h2>") || !strings.Contains(got, "<blockquote>") {
		t.Errorf("unexpected markdown output: %s", got)
	}
}
