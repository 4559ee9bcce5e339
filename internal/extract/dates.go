package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	meridiem  = strings.NewReplacer("a.m.", "AM", "p.m.", "PM", "A.M.", "AM", "P.M.", "PM")
	yearComma = regexp.MustCompile(`(\d{4}),`)
	weekday   = regexp.MustCompile(`(?i)^(mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s+`)
)

// NormalizeDate parses a free-text date into UTC. A value without a zone
// is read as UTC. It returns nil when nothing parseable remains.
func NormalizeDate(s string) *time.Time {
	s = strings.TrimPrefix(strings.TrimSpace(s), "Updated")
	s = strings.ReplaceAll(s, " at ", " ")
	s = meridiem.Replace(s)
	s = yearComma.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		// dateparse rejects a leading weekday in most layouts.
		trimmed := weekday.ReplaceAllString(s, "")
		if trimmed == s || trimmed == "" {
			return nil
		}
		if t, err = dateparse.ParseIn(trimmed, time.UTC); err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}
