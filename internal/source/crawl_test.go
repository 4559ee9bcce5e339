package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/browser"
	"github.com/TobiSchelling/newsjuice/internal/config"
)

type fakeSession struct {
	pages   map[string]string
	current string
	visited []string
	closed  bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.visited = append(s.visited, url)
	if _, ok := s.pages[url]; !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	s.current = url
	return nil
}

func (s *fakeSession) WaitReady(context.Context) error            { return nil }
func (s *fakeSession) Wait(context.Context, time.Duration) error { return nil }
func (s *fakeSession) HTML(context.Context) (string, error)       { return s.pages[s.current], nil }
func (s *fakeSession) Close() error                              { s.closed = true; return nil }

type fakeLauncher struct {
	session *fakeSession
	err     error
}

func (l *fakeLauncher) Launch(context.Context) (browser.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

const root = "https://www.thecrimson.com"

func newTestCrawl(t *testing.T, l browser.Launcher, minExpected int) *Crawl {
	t.Helper()
	c, err := NewCrawl(CrawlConfig{
		Name:           "The Harvard Crimson",
		Root:           root,
		Topics:         []string{"/section/news/", "/section/sports/"},
		ArticlePattern: regexp.MustCompile(`^/article/`),
		MinExpected:    minExpected,
	}, l, nil)
	if err != nil {
		t.Fatalf("failed to create crawl: %v", err)
	}
	return c
}

func TestCrawlEntries(t *testing.T) {
	sess := &fakeSession{pages: map[string]string{
		root + "/section/news/": `<a href="/article/2025/5/29/a/">A</a>
			<a href="/article/2025/5/29/b/#comments">B</a>
			<a href="/section/arts/">not an article</a>
			<a href="https://elsewhere.com/article/x/">other host</a>`,
		root + "/section/sports/": `<a href="/article/2025/5/29/b/">B again</a>
			<a href="/article/2025/5/29/gone/">Gone</a>`,
		root + "/article/2025/5/29/a/": "<html>A</html>",
		root + "/article/2025/5/29/b/": "<html>B</html>",
	}}
	c := newTestCrawl(t, &fakeLauncher{session: sess}, 10)

	entries, stats, err := c.Entries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Found != 3 {
		t.Errorf("expected 3 unique candidates, got %d", stats.Found)
	}
	if stats.Dropped != 1 {
		t.Errorf("expected 1 duplicate candidate, got %d", stats.Dropped)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed article, got %d", stats.Failed)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].URL != root+"/article/2025/5/29/b/" {
		t.Errorf("expected canonical URL without fragment, got %q", entries[1].URL)
	}
	if entries[0].Kind != KindDOM || entries[0].HTML != "<html>A</html>" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if !sess.closed {
		t.Error("expected browser session to be closed")
	}
}

func TestCrawlSkipsFailedTopic(t *testing.T) {
	sess := &fakeSession{pages: map[string]string{
		root + "/section/sports/":      `<a href="/article/2025/1/1/x/">X</a>`,
		root + "/article/2025/1/1/x/": "<html>X</html>",
	}}
	c := newTestCrawl(t, &fakeLauncher{session: sess}, 0)

	entries, stats, err := c.Entries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || len(entries) != 1 {
		t.Errorf("expected one failed topic and one entry, got failed=%d entries=%d", stats.Failed, len(entries))
	}
	if !sess.closed {
		t.Error("expected browser session to be closed")
	}
}

func TestCrawlLaunchFailureIsConfigurationError(t *testing.T) {
	c := newTestCrawl(t, &fakeLauncher{err: errors.New("chrome not found")}, 0)

	_, _, err := c.Entries(context.Background())
	if !errors.Is(err, ErrBrowserUnavailable) {
		t.Fatalf("expected ErrBrowserUnavailable, got %v", err)
	}
	if !errors.Is(err, config.ErrConfiguration) {
		t.Error("expected error to be a configuration error")
	}
}

func TestCrawlCheck(t *testing.T) {
	sess := &fakeSession{pages: map[string]string{}}
	c := newTestCrawl(t, &fakeLauncher{session: sess}, 0)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !sess.closed {
		t.Error("expected check session to be closed")
	}
	if len(sess.visited) != 0 {
		t.Errorf("expected no navigation during check, got %v", sess.visited)
	}

	c = newTestCrawl(t, &fakeLauncher{err: errors.New("chrome not found")}, 0)
	if err := c.Check(context.Background()); !errors.Is(err, ErrBrowserUnavailable) {
		t.Errorf("expected ErrBrowserUnavailable, got %v", err)
	}
}

func TestNewCrawlRequiresPattern(t *testing.T) {
	_, err := NewCrawl(CrawlConfig{Root: root}, &fakeLauncher{}, nil)
	if err == nil {
		t.Fatal("expected error without article pattern")
	}
}
