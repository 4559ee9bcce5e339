// Package validate drops unusable and duplicate article records before they
// reach the interchange log.
package validate

import (
	"log/slog"
	"strings"

	"github.com/TobiSchelling/newsjuice/internal/article"
)

// SkipReason says why a record was rejected.
type SkipReason int

const (
	Accepted SkipReason = iota
	SkipNoContent
	SkipTooShort
	SkipDuplicate
)

func (r SkipReason) String() string {
	switch r {
	case SkipNoContent:
		return "no_content"
	case SkipTooShort:
		return "too_short"
	case SkipDuplicate:
		return "duplicate"
	default:
		return "accepted"
	}
}

// Result is the verdict for one record.
type Result struct {
	Accepted bool
	Reason   SkipReason
}

// Counts aggregates verdicts over a run.
type Counts struct {
	Accepted  int
	NoContent int
	TooShort  int
	Duplicate int
}

// Rejected returns the total number of dropped records.
func (c Counts) Rejected() int {
	return c.NoContent + c.TooShort + c.Duplicate
}

// Filter remembers the canonical URLs accepted during one run. Create a new
// Filter per run.
type Filter struct {
	minLength int
	seen      map[string]struct{}
	counts    Counts
	logger    *slog.Logger
}

// New creates a filter with the default minimum body length.
func New(logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		minLength: article.MinBodyLength,
		seen:      make(map[string]struct{}),
		logger:    logger.With("component", "validate"),
	}
}

// Check classifies rec and, when accepted, records its URL.
func (f *Filter) Check(rec *article.Record) Result {
	reason := f.classify(rec)
	switch reason {
	case Accepted:
		f.counts.Accepted++
		f.seen[article.Canonicalize(rec.URL)] = struct{}{}
		return Result{Accepted: true}
	case SkipNoContent:
		f.counts.NoContent++
	case SkipTooShort:
		f.counts.TooShort++
	case SkipDuplicate:
		f.counts.Duplicate++
	}
	f.logger.Debug("rejected record", "url", rec.URL, "reason", reason.String())
	return Result{Reason: reason}
}

func (f *Filter) classify(rec *article.Record) SkipReason {
	if strings.TrimSpace(rec.Body) == "" {
		return SkipNoContent
	}
	if rec.BodyLength() < f.minLength {
		return SkipTooShort
	}
	if _, dup := f.seen[article.Canonicalize(rec.URL)]; dup {
		return SkipDuplicate
	}
	return Accepted
}

// Counts returns the verdict totals so far.
func (f *Filter) Counts() Counts {
	return f.counts
}
