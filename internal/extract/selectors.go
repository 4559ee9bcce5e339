package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/newsjuice/internal/source"
)

// SelectorSet is the markup of one generation of a site's article pages.
// Empty selectors are skipped.
type SelectorSet struct {
	Name    string
	Title   string
	Author  string
	Content string
	Date    string
	// DateAttr names the attribute holding the date; empty means the
	// element text.
	DateAttr string
}

// Selectors applies known selector sets to rendered pages, current markup
// first. Each field is taken from the first set that matches it.
type Selectors struct {
	Sets []SelectorSet
}

func (Selectors) Name() string { return "selectors" }

func (s Selectors) Extract(raw *source.RawEntry) Fields {
	if raw.Kind != source.KindDOM || len(s.Sets) == 0 {
		return Fields{}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.HTML))
	if err != nil {
		return Fields{}
	}

	var f Fields
	for _, set := range s.Sets {
		if f.Title == "" && set.Title != "" {
			f.Title = normalizeText(doc.Find(set.Title).First().Text())
		}
		if f.Author == "" && set.Author != "" {
			f.Author = joinTexts(doc.Find(set.Author), ", ")
		}
		if f.Body == "" && set.Content != "" {
			f.Body = joinTexts(doc.Find(set.Content), "\n")
		}
		if f.Published == nil && set.Date != "" {
			f.Published = NormalizeDate(dateValue(doc.Find(set.Date).First(), set.DateAttr))
		}
	}
	return f
}

func joinTexts(sel *goquery.Selection, sep string) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := normalizeText(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, sep)
}

func dateValue(sel *goquery.Selection, attr string) string {
	if sel.Length() == 0 {
		return ""
	}
	if attr != "" {
		v, _ := sel.Attr(attr)
		return v
	}
	return sel.Text()
}
