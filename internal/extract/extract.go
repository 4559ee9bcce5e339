// Package extract turns raw source entries into article records by running
// an ordered list of extraction strategies.
package extract

import (
	"errors"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/article"
	"github.com/TobiSchelling/newsjuice/internal/source"
)

// ErrNoContent is returned when no strategy produced a body.
var ErrNoContent = errors.New("no content extracted")

// Fields is what one strategy could recover. Empty values mean "unknown".
type Fields struct {
	Title     string
	Author    string
	Body      string
	Published *time.Time
}

func (f Fields) complete() bool {
	return f.Title != "" && f.Author != "" && f.Body != "" && f.Published != nil
}

// Strategy recovers some or all fields from a raw entry. Strategies must
// not fail: anything they cannot find stays empty.
type Strategy interface {
	Name() string
	Extract(raw *source.RawEntry) Fields
}

// Extractor merges strategy output field by field. The first strategy to
// supply a field wins.
type Extractor struct {
	strategies []Strategy
}

// New creates an extractor that tries strategies in the given order.
func New(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// ForFeeds prefers feed metadata and falls back to readability.
func ForFeeds() *Extractor {
	return New(FeedMetadata{}, Readability{})
}

// ForSite tries the site's selector sets before readability.
func ForSite(sets []SelectorSet) *Extractor {
	return New(Selectors{Sets: sets}, Readability{})
}

// Extract always returns a record. When the body is empty it also returns
// ErrNoContent; the validator drops such records.
func (e *Extractor) Extract(raw source.RawEntry) (*article.Record, error) {
	var merged Fields
	for _, s := range e.strategies {
		merge(&merged, s.Extract(&raw))
		if merged.complete() {
			break
		}
	}

	rec := &article.Record{
		URL:         article.Canonicalize(raw.URL),
		Title:       article.Ptr(merged.Title),
		Author:      article.Ptr(merged.Author),
		Body:        merged.Body,
		PublishedAt: merged.Published,
		FetchedAt:   raw.FetchedAt.UTC(),
		SourceType:  raw.SourceType,
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	if rec.Body == "" {
		return rec, ErrNoContent
	}
	return rec, nil
}

func merge(dst *Fields, src Fields) {
	if dst.Title == "" {
		dst.Title = strings.TrimSpace(src.Title)
	}
	if dst.Author == "" {
		dst.Author = strings.TrimSpace(src.Author)
	}
	if dst.Body == "" {
		dst.Body = src.Body
	}
	if dst.Published == nil && src.Published != nil {
		t := src.Published.UTC()
		dst.Published = &t
	}
}

// normalizeText collapses whitespace inside lines and drops blank lines.
func normalizeText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
