package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/newsjuice/internal/retrieve"
	"github.com/TobiSchelling/newsjuice/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// maxK bounds how many results one request may ask for.
const maxK = 50

// Searcher answers queries. *retrieve.Retriever satisfies it.
type Searcher interface {
	Retrieve(ctx context.Context, q retrieve.Query) ([]retrieve.Result, error)
}

// StatsSource reports what the store holds.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Server is the HTTP server for the query UI.
type Server struct {
	searcher Searcher
	stats    StatsSource
	pages    map[string]*template.Template
	mux      *http.ServeMux
	logger   *slog.Logger
}

// New creates a new Server. stats may be nil.
func New(searcher Searcher, stats StatsSource, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so it can define "content" and
	// "title" independently.
	pageNames := []string{"index.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		searcher: searcher,
		stats:    stats,
		pages:    pages,
		mux:      http.NewServeMux(),
		logger:   logger.With("component", "server"),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/search", s.handleAPISearch)
}

func parseQuery(r *http.Request) retrieve.Query {
	q := retrieve.Query{
		Text:   strings.TrimSpace(r.FormValue("q")),
		Metric: store.Metric(r.FormValue("metric")),
	}
	if k, err := strconv.Atoi(r.FormValue("k")); err == nil {
		q.K = min(k, maxK)
	}
	return q
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	q := parseQuery(r)
	k, metric := q.K, q.Metric
	if k <= 0 {
		k = retrieve.DefaultK
	}
	if metric == "" {
		metric = store.Cosine
	}
	data := map[string]any{
		"Query":   q.Text,
		"K":       k,
		"Metric":  string(metric),
		"Metrics": []store.Metric{store.Cosine, store.Euclidean, store.InnerProduct},
	}

	if s.stats != nil {
		if st, err := s.stats.Stats(r.Context()); err == nil {
			data["Stats"] = st
		} else {
			s.logger.Warn("reading store stats", "error", err)
		}
	}

	if q.Text != "" {
		results, err := s.searcher.Retrieve(r.Context(), q)
		if err != nil {
			s.logger.Warn("query failed", "query", q.Text, "error", err)
			data["Error"] = err.Error()
		} else {
			data["Results"] = results
			data["Report"] = retrieve.Markdown(q.Text, results)
		}
	}

	s.render(w, "index.html", data)
}

func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r)
	results, err := s.searcher.Retrieve(r.Context(), q)

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	switch {
	case errors.Is(err, retrieve.ErrEmptyQuery), errors.Is(err, store.ErrUnknownMetric):
		w.WriteHeader(http.StatusBadRequest)
		enc.Encode(map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("api query failed", "query", q.Text, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		enc.Encode(map[string]string{"error": "internal server error"})
		return
	}

	enc.Encode(map[string]any{
		"query":   q.Text,
		"results": results,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("rendering template", "template", name, "error", err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port, bound to localhost.
func Serve(searcher Searcher, stats StatsSource, port int, logger *slog.Logger) error {
	srv, err := New(searcher, stats, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.logger.Info("server listening", "url", "http://"+addr)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return hs.ListenAndServe()
}
