package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/newsjuice/internal/source"
)

// FeedMetadata takes title, author and date from the feed item, and the
// body from inline feed content when there is any.
type FeedMetadata struct{}

func (FeedMetadata) Name() string { return "feed" }

func (FeedMetadata) Extract(raw *source.RawEntry) Fields {
	if raw.Kind != source.KindFeed {
		return Fields{}
	}
	f := Fields{
		Title:     raw.Title,
		Author:    raw.Author,
		Published: raw.PublishedParsed,
	}
	if f.Published == nil {
		f.Published = NormalizeDate(raw.Published)
	}
	if raw.Content != "" {
		f.Body = blockText(raw.Content)
	}
	return f
}

// Readability extracts the densest text region of a full page.
type Readability struct{}

func (Readability) Name() string { return "readability" }

func (Readability) Extract(raw *source.RawEntry) Fields {
	if strings.TrimSpace(raw.HTML) == "" {
		return Fields{}
	}
	pageURL, _ := url.Parse(raw.URL)
	doc, err := readability.FromReader(strings.NewReader(raw.HTML), pageURL)
	if err != nil {
		return Fields{}
	}
	return Fields{
		Title:  doc.Title,
		Author: doc.Byline,
		Body:   normalizeText(doc.TextContent),
	}
}

// blockText renders an HTML fragment as text with one paragraph per line.
func blockText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var paras []string
	doc.Find("p, li, h1, h2, h3, h4, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if text := normalizeText(s.Text()); text != "" {
			paras = append(paras, text)
		}
	})
	if len(paras) == 0 {
		return normalizeText(doc.Text())
	}
	return strings.Join(paras, "\n")
}
