// Package source produces raw entries from configured information sources.
// A feed source pulls an RSS/Atom document over HTTP; a crawl source renders
// topic listings in a headless browser and follows their article links.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/newsjuice/internal/config"
)

// ErrBrowserUnavailable is returned when a crawl cannot start its browser.
// It is a configuration error and aborts the run.
var ErrBrowserUnavailable = fmt.Errorf("%w: browser unavailable", config.ErrConfiguration)

// Kind tells the extractor what a raw entry carries.
type Kind int

const (
	// KindFeed entries carry feed metadata plus inline content or the
	// fetched article page.
	KindFeed Kind = iota
	// KindDOM entries carry a browser-rendered page.
	KindDOM
)

func (k Kind) String() string {
	if k == KindDOM {
		return "dom"
	}
	return "feed"
}

// RawEntry is one unprocessed item from a source.
type RawEntry struct {
	URL        string
	Kind       Kind
	SourceName string
	SourceType string

	// Feed-supplied metadata, empty for DOM entries.
	Title           string
	Author          string
	Published       string
	PublishedParsed *time.Time

	// Content is inline HTML from the feed item; HTML is a full page.
	Content string
	HTML    string

	FetchedAt time.Time
}

// Stats counts what a source saw during one call to Entries.
type Stats struct {
	Found   int
	Yielded int
	Failed  int
	Dropped int
}

// Source is the capability shared by every adapter.
type Source interface {
	Name() string
	Entries(ctx context.Context) ([]RawEntry, Stats, error)
}

// Checker is implemented by sources that need something from the host,
// such as a browser, before they can run. Check errors are configuration
// errors.
type Checker interface {
	Check(ctx context.Context) error
}

func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
