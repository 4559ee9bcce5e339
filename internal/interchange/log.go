// Package interchange reads and writes the JSON Lines log that decouples
// scraping from loading. Each line is one article.
package interchange

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/article"
)

var errMissingField = errors.New("missing required field")

type line struct {
	Author      *string    `json:"author"`
	Title       *string    `json:"title"`
	Summary     *string    `json:"summary"`
	Content     string     `json:"content"`
	SourceLink  string     `json:"source_link"`
	FetchedAt   time.Time  `json:"fetched_at"`
	PublishedAt *time.Time `json:"published_at"`
	SourceType  string     `json:"source_type"`
}

func toLine(rec *article.Record) line {
	l := line{
		Author:     rec.Author,
		Title:      rec.Title,
		Summary:    rec.Summary,
		Content:    rec.Body,
		SourceLink: rec.URL,
		FetchedAt:  rec.FetchedAt.UTC(),
		SourceType: rec.SourceType,
	}
	if rec.PublishedAt != nil {
		p := rec.PublishedAt.UTC()
		l.PublishedAt = &p
	}
	return l
}

func (l line) record() (*article.Record, error) {
	if strings.TrimSpace(l.SourceLink) == "" {
		return nil, fmt.Errorf("%w: source_link", errMissingField)
	}
	if strings.TrimSpace(l.Content) == "" {
		return nil, fmt.Errorf("%w: content", errMissingField)
	}
	rec := &article.Record{
		URL:        article.Canonicalize(l.SourceLink),
		Title:      nonEmpty(l.Title),
		Author:     nonEmpty(l.Author),
		Summary:    nonEmpty(l.Summary),
		Body:       l.Content,
		FetchedAt:  l.FetchedAt.UTC(),
		SourceType: l.SourceType,
	}
	if l.PublishedAt != nil {
		p := l.PublishedAt.UTC()
		rec.PublishedAt = &p
	}
	return rec, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	return article.Ptr(*s)
}

// Writer appends records to a log.
type Writer struct {
	closer io.Closer
	buf    *bufio.Writer
	enc    *json.Encoder
	count  int
}

// NewWriter writes records to w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Create truncates path and returns a writer for a fresh log.
func Create(path string) (*Writer, error) {
	return open(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// Append opens path for appending, creating it if needed.
func Append(path string) (*Writer, error) {
	return open(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func open(path string, flags int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening interchange log: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write appends one record as a single JSON line.
func (w *Writer) Write(rec *article.Record) error {
	if err := w.enc.Encode(toLine(rec)); err != nil {
		return fmt.Errorf("writing %s: %w", rec.URL, err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes buffered lines and closes the underlying file, if any.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return fmt.Errorf("flushing interchange log: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// ReadStats describes one pass over a log.
type ReadStats struct {
	Lines     int
	Records   int
	Malformed int
}

// Read streams records from r to fn. Malformed lines are logged with their
// line number and skipped. Only I/O errors and errors from fn stop the read.
func Read(r io.Reader, logger *slog.Logger, fn func(*article.Record) error) (ReadStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats ReadStats
	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return stats, fmt.Errorf("reading interchange log: %w", err)
		}
		eof := err == io.EOF

		if text := strings.TrimSpace(raw); text != "" {
			stats.Lines++
			var l line
			if jerr := json.Unmarshal([]byte(text), &l); jerr != nil {
				stats.Malformed++
				logger.Warn("skipping malformed line", "line", lineNo, "error", jerr)
			} else if rec, verr := l.record(); verr != nil {
				stats.Malformed++
				logger.Warn("skipping malformed line", "line", lineNo, "error", verr)
			} else {
				stats.Records++
				if ferr := fn(rec); ferr != nil {
					return stats, ferr
				}
			}
		}

		if eof {
			return stats, nil
		}
	}
}

// ReadFile loads every well-formed record in the log at path.
func ReadFile(path string, logger *slog.Logger) ([]*article.Record, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("opening interchange log: %w", err)
	}
	defer f.Close()

	var records []*article.Record
	stats, err := Read(f, logger, func(rec *article.Record) error {
		records = append(records, rec)
		return nil
	})
	return records, stats, err
}
