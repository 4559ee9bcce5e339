package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/newsjuice/internal/article"
	"github.com/TobiSchelling/newsjuice/internal/fetch"
)

// FeedConfig describes one RSS/Atom source.
type FeedConfig struct {
	URL        string
	Name       string
	SourceType string
	// MaxEntries caps the items taken from one pull. Zero means no cap.
	MaxEntries int
}

// Feed pulls a structured feed and resolves each item to article HTML.
type Feed struct {
	cfg    FeedConfig
	client *fetch.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewFeed creates a feed source. The client's delay spaces the secondary
// page fetches.
func NewFeed(cfg FeedConfig, client *fetch.Client, logger *slog.Logger) *Feed {
	if cfg.Name == "" {
		cfg.Name = extractSourceName(cfg.URL)
	}
	if cfg.SourceType == "" {
		cfg.SourceType = cfg.Name
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "feed", "source", cfg.Name),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (f *Feed) Name() string { return f.cfg.Name }

// Entries fetches the feed document, then the article page for every item
// that carries no usable inline content. A failure to get the feed itself is
// returned as a fetch error; per-item failures are counted and skipped.
func (f *Feed) Entries(ctx context.Context) ([]RawEntry, Stats, error) {
	var stats Stats

	body, err := f.client.Get(ctx, f.cfg.URL)
	if err != nil {
		return nil, stats, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, stats, &fetch.Error{URL: f.cfg.URL, Err: fmt.Errorf("parsing feed: %w", err)}
	}

	base, _ := url.Parse(f.cfg.URL)
	var entries []RawEntry
	for _, item := range feed.Items {
		if f.cfg.MaxEntries > 0 && stats.Found >= f.cfg.MaxEntries {
			break
		}
		stats.Found++

		entry, ok := f.parseItem(item, base)
		if !ok {
			stats.Dropped++
			f.logger.Debug("dropping feed item without link", "title", item.Title)
			continue
		}

		if entry.Content == "" {
			page, err := f.client.Get(ctx, entry.URL)
			if err != nil {
				stats.Failed++
				f.logger.Warn("skipping entry", "url", entry.URL, "error", err)
				continue
			}
			entry.HTML = string(page)
		}
		entry.FetchedAt = f.now()

		entries = append(entries, entry)
		stats.Yielded++
	}

	f.logger.Info("parsed feed", "found", stats.Found, "yielded", stats.Yielded, "failed", stats.Failed)
	return entries, stats, nil
}

func (f *Feed) parseItem(item *gofeed.Item, base *url.URL) (RawEntry, bool) {
	link := resolveLink(item, base)
	if link == "" {
		return RawEntry{}, false
	}

	entry := RawEntry{
		URL:        link,
		Kind:       KindFeed,
		SourceName: f.cfg.Name,
		SourceType: f.cfg.SourceType,
		Title:      strings.TrimSpace(item.Title),
		Author:     itemAuthor(item),
		Published:  item.Published,
	}
	if item.PublishedParsed != nil {
		entry.PublishedParsed = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.PublishedParsed = item.UpdatedParsed
	}

	// Inline bodies shorter than an article are teasers; the page is
	// fetched instead.
	switch {
	case fullBody(item.Content):
		entry.Content = item.Content
	case fullBody(item.Description):
		entry.Content = item.Description
	}
	return entry, true
}

func fullBody(fragment string) bool {
	return utf8.RuneCountInString(htmlText(fragment)) >= article.MinBodyLength
}

// resolveLink returns the item's absolute link. A GUID stands in only when
// it is itself an http(s) URL.
func resolveLink(item *gofeed.Item, base *url.URL) string {
	candidates := []string{item.Link}
	if len(item.Links) > 0 {
		candidates = append(candidates, item.Links...)
	}
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme == "http" || u.Scheme == "https" {
			return u.String()
		}
	}

	if guid := strings.TrimSpace(item.GUID); guid != "" {
		if u, err := url.Parse(guid); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return u.String()
		}
	}
	return ""
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	var names []string
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			names = append(names, strings.TrimSpace(p.Name))
		}
	}
	return strings.Join(names, ", ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds.", "news."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		return feedURL
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
