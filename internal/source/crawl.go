package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/newsjuice/internal/article"
	"github.com/TobiSchelling/newsjuice/internal/browser"
)

// CrawlConfig describes a site crawled through topic listing pages.
type CrawlConfig struct {
	Name       string
	Root       string
	SourceType string
	Topics     []string
	// ArticlePattern is matched against the path of every anchor on a
	// topic page.
	ArticlePattern *regexp.Regexp
	// MinExpected is the candidate count below which a warning is logged.
	MinExpected int
	Settle      time.Duration
	PageDelay   time.Duration
}

// Crawl renders topic pages in a browser and yields each linked article's
// rendered DOM.
type Crawl struct {
	cfg      CrawlConfig
	launcher browser.Launcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewCrawl creates a crawl source.
func NewCrawl(cfg CrawlConfig, launcher browser.Launcher, logger *slog.Logger) (*Crawl, error) {
	if _, err := url.Parse(cfg.Root); err != nil || cfg.Root == "" {
		return nil, fmt.Errorf("crawl %q: invalid root %q", cfg.Name, cfg.Root)
	}
	if cfg.ArticlePattern == nil {
		return nil, fmt.Errorf("crawl %q: article pattern is required", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Root
	}
	if cfg.SourceType == "" {
		cfg.SourceType = cfg.Name
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawl{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger.With("component", "crawl", "source", cfg.Name),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *Crawl) Name() string { return c.cfg.Name }

// Check launches and closes a browser session so a missing browser is
// reported before any source runs.
func (c *Crawl) Check(ctx context.Context) error {
	sess, err := c.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBrowserUnavailable, c.cfg.Name, err)
	}
	if err := sess.Close(); err != nil {
		c.logger.Warn("closing browser session", "error", err)
	}
	return nil
}

// Entries holds one browser session for the whole crawl. Failing to launch
// it is fatal; every other failure skips the page it happened on.
func (c *Crawl) Entries(ctx context.Context) (entries []RawEntry, stats Stats, err error) {
	sess, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %s: %v", ErrBrowserUnavailable, c.cfg.Name, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			c.logger.Warn("closing browser session", "error", cerr)
		}
	}()

	candidates := c.candidates(ctx, sess, &stats)
	stats.Found = len(candidates)
	if len(candidates) < c.cfg.MinExpected {
		c.logger.Warn("fewer article links than expected", "found", len(candidates), "expected", c.cfg.MinExpected)
	}

	for i, link := range candidates {
		if i > 0 {
			if err := pause(ctx, c.cfg.PageDelay); err != nil {
				return entries, stats, nil
			}
		}

		html, err := c.render(ctx, sess, link)
		if err != nil {
			stats.Failed++
			c.logger.Warn("skipping article", "url", link, "error", err)
			continue
		}

		entries = append(entries, RawEntry{
			URL:        link,
			Kind:       KindDOM,
			SourceName: c.cfg.Name,
			SourceType: c.cfg.SourceType,
			HTML:       html,
			FetchedAt:  c.now(),
		})
		stats.Yielded++
	}

	c.logger.Info("crawl complete", "found", stats.Found, "yielded", stats.Yielded, "failed", stats.Failed)
	return entries, stats, nil
}

// candidates visits every topic page and collects article links in page
// order. A link listed under several topics is kept once.
func (c *Crawl) candidates(ctx context.Context, sess browser.Session, stats *Stats) []string {
	root, _ := url.Parse(c.cfg.Root)
	seen := make(map[string]struct{})
	var links []string

	for i, topic := range c.cfg.Topics {
		if i > 0 {
			if err := pause(ctx, c.cfg.PageDelay); err != nil {
				return links
			}
		}

		topicURL := resolve(root, topic)
		html, err := c.listing(ctx, sess, topicURL)
		if err != nil {
			stats.Failed++
			c.logger.Warn("skipping topic", "url", topicURL, "error", err)
			continue
		}

		found := 0
		for _, link := range c.articleLinks(root, html) {
			key := article.Canonicalize(link)
			if _, dup := seen[key]; dup {
				stats.Dropped++
				continue
			}
			seen[key] = struct{}{}
			links = append(links, key)
			found++
		}
		c.logger.Debug("scanned topic", "url", topicURL, "new_links", found)
	}
	return links
}

func (c *Crawl) listing(ctx context.Context, sess browser.Session, topicURL string) (string, error) {
	if err := sess.Navigate(ctx, topicURL); err != nil {
		return "", err
	}
	if err := sess.WaitReady(ctx); err != nil {
		return "", err
	}
	return sess.HTML(ctx)
}

func (c *Crawl) render(ctx context.Context, sess browser.Session, link string) (string, error) {
	if err := sess.Navigate(ctx, link); err != nil {
		return "", err
	}
	if err := sess.Wait(ctx, c.cfg.Settle); err != nil {
		return "", err
	}
	return sess.HTML(ctx)
}

// articleLinks returns same-host anchors whose path matches the article
// pattern, resolved against the site root.
func (c *Crawl) articleLinks(root *url.URL, html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := root.ResolveReference(u)
		if !strings.EqualFold(abs.Hostname(), root.Hostname()) {
			return
		}
		if !c.cfg.ArticlePattern.MatchString(abs.Path) {
			return
		}
		links = append(links, abs.String())
	})
	return links
}

func resolve(root *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return root.ResolveReference(u).String()
}
