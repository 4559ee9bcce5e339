// Package article defines the canonical record produced by extraction and
// consumed by the loader.
package article

import (
	"encoding/hex"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-crypt/x/blake2b"
)

// MinBodyLength is the shortest body, in characters, worth persisting.
const MinBodyLength = 200

// Record is one extracted article. Optional attributes are nil when no
// extraction strategy could supply them.
type Record struct {
	URL         string
	Title       *string
	Author      *string
	Summary     *string
	Body        string
	PublishedAt *time.Time
	FetchedAt   time.Time
	SourceType  string
}

// BodyLength returns the body length in characters.
func (r *Record) BodyLength() int {
	return utf8.RuneCountInString(r.Body)
}

// ID returns the stable article id derived from the canonical URL.
func (r *Record) ID() string {
	return ID(Canonicalize(r.URL))
}

// Canonicalize strips the fragment from rawURL. Query strings, case and
// trailing slashes are left alone.
func Canonicalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '#'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// ID hashes a canonical URL into a 32-character hex id. The same URL always
// maps to the same id, so reloads hit the same storage keys.
func ID(canonicalURL string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(canonicalURL))
	return hex.EncodeToString(h.Sum(nil))
}

// Ptr returns a pointer to the trimmed string, or nil when it is empty.
func Ptr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
