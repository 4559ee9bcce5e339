package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/browser"
	"github.com/TobiSchelling/newsjuice/internal/config"
	"github.com/TobiSchelling/newsjuice/internal/extract"
	"github.com/TobiSchelling/newsjuice/internal/fetch"
	"github.com/TobiSchelling/newsjuice/internal/interchange"
	"github.com/TobiSchelling/newsjuice/internal/source"
	"github.com/TobiSchelling/newsjuice/internal/validate"
)

// SourceResult holds what one source contributed to a run.
type SourceResult struct {
	Name     string
	Found    int
	Yielded  int
	Failed   int
	Dropped  int
	Accepted int
	Err      error
}

// Result holds the results of a collection run.
type Result struct {
	Sources []SourceResult
	Skipped validate.Counts
	Written int
}

// Found returns the number of candidate items across all sources.
func (r *Result) Found() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Found
	}
	return n
}

// Failed returns the number of per-item fetch failures across all sources.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Failed
	}
	return n
}

// Unit pairs a source with the extractor for its pages.
type Unit struct {
	Source    source.Source
	Extractor *extract.Extractor
}

// Collector orchestrates article collection from every configured source.
type Collector struct {
	units  []Unit
	logger *slog.Logger
}

// New creates a collector over explicit units.
func New(units []Unit, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{units: units, logger: logger.With("component", "collect")}
}

// NewCollector builds feed and crawl sources from cfg. The launcher is
// only needed when crawls are configured.
func NewCollector(cfg *config.Config, client *fetch.Client, launcher browser.Launcher, logger *slog.Logger) (*Collector, error) {
	var units []Unit

	for _, f := range cfg.Sources.Feeds {
		feed := source.NewFeed(source.FeedConfig{
			URL:        f.URL,
			Name:       f.Name,
			SourceType: f.SourceType,
			MaxEntries: f.MaxEntries,
		}, client, logger)
		units = append(units, Unit{Source: feed, Extractor: extract.ForFeeds()})
	}

	for _, cr := range cfg.Sources.Crawls {
		if launcher == nil {
			return nil, fmt.Errorf("%w: crawl %q needs a browser", config.ErrConfiguration, cr.Name)
		}
		pattern, err := regexp.Compile(cr.ArticlePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: crawl %q: article_pattern: %v", config.ErrConfiguration, cr.Name, err)
		}
		crawl, err := source.NewCrawl(source.CrawlConfig{
			Name:           cr.Name,
			Root:           cr.Root,
			SourceType:     cr.SourceType,
			Topics:         cr.Topics,
			ArticlePattern: pattern,
			MinExpected:    cr.MinExpected,
			Settle:         time.Duration(cfg.Browser.SettleMS) * time.Millisecond,
			PageDelay:      time.Duration(cfg.Browser.PageDelayMS) * time.Millisecond,
		}, launcher, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}

		sets := make([]extract.SelectorSet, len(cr.Selectors))
		for i, s := range cr.Selectors {
			sets[i] = extract.SelectorSet{
				Name:     s.Name,
				Title:    s.Title,
				Author:   s.Author,
				Content:  s.Content,
				Date:     s.Date,
				DateAttr: s.DateAttr,
			}
		}
		units = append(units, Unit{Source: crawl, Extractor: extract.ForSite(sets)})
	}

	return New(units, logger), nil
}

// SourceNames lists the configured sources in run order.
func (c *Collector) SourceNames() []string {
	names := make([]string, len(c.units))
	for i, u := range c.units {
		names[i] = u.Source.Name()
	}
	return names
}

// Collect runs every source, extracts and validates its entries, and
// writes accepted records to w. One source failing does not stop the
// others; a configuration error or a write failure on w aborts the run.
// Sources that implement source.Checker are checked before any source
// runs.
func (c *Collector) Collect(ctx context.Context, w *interchange.Writer) (*Result, error) {
	r := &Result{}
	if err := c.check(ctx); err != nil {
		return r, err
	}
	filter := validate.New(c.logger)

	for _, u := range c.units {
		name := u.Source.Name()
		c.logger.Info("collecting", "source", name)

		entries, stats, err := u.Source.Entries(ctx)
		sr := SourceResult{
			Name:    name,
			Found:   stats.Found,
			Yielded: stats.Yielded,
			Failed:  stats.Failed,
			Dropped: stats.Dropped,
		}
		if err != nil {
			if errors.Is(err, config.ErrConfiguration) {
				return r, err
			}
			sr.Err = err
			c.logger.Warn("source failed", "source", name, "error", err)
		}

		for _, entry := range entries {
			rec, xerr := u.Extractor.Extract(entry)
			if xerr != nil {
				c.logger.Debug("extraction found no body", "url", entry.URL)
			}
			if !filter.Check(rec).Accepted {
				continue
			}
			if err := w.Write(rec); err != nil {
				return r, fmt.Errorf("writing interchange log: %w", err)
			}
			sr.Accepted++
			r.Written++
		}

		c.logger.Info("source done", "source", name, "found", sr.Found, "accepted", sr.Accepted, "failed", sr.Failed)
		r.Sources = append(r.Sources, sr)
	}

	r.Skipped = filter.Counts()
	c.logger.Info("collection complete",
		"found", r.Found(),
		"written", r.Written,
		"no_content", r.Skipped.NoContent,
		"too_short", r.Skipped.TooShort,
		"duplicate", r.Skipped.Duplicate,
	)
	return r, nil
}

func (c *Collector) check(ctx context.Context) error {
	for _, u := range c.units {
		chk, ok := u.Source.(source.Checker)
		if !ok {
			continue
		}
		if err := chk.Check(ctx); err != nil {
			if !errors.Is(err, config.ErrConfiguration) {
				err = fmt.Errorf("%w: %s: %w", config.ErrConfiguration, u.Source.Name(), err)
			}
			return err
		}
	}
	return nil
}

// SkipReasons returns the non-zero rejection counts keyed by reason name,
// sorted by name.
func (r *Result) SkipReasons() []ReasonCount {
	all := []ReasonCount{
		{validate.SkipDuplicate.String(), r.Skipped.Duplicate},
		{validate.SkipNoContent.String(), r.Skipped.NoContent},
		{validate.SkipTooShort.String(), r.Skipped.TooShort},
	}
	var out []ReasonCount
	for _, rc := range all {
		if rc.Count > 0 {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reason < out[j].Reason })
	return out
}

type ReasonCount struct {
	Reason string
	Count  int
}
