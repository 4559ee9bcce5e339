package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TobiSchelling/newsjuice/internal/article"
)

func rec(url string, bodyLen int) *article.Record {
	return &article.Record{URL: url, Body: strings.Repeat("x", bodyLen)}
}

func TestFilterReasons(t *testing.T) {
	f := New(nil)

	assert.Equal(t, Result{Accepted: true}, f.Check(rec("https://a.com/1", 200)))
	assert.Equal(t, SkipTooShort, f.Check(rec("https://a.com/2", 199)).Reason)
	assert.Equal(t, SkipNoContent, f.Check(rec("https://a.com/3", 0)).Reason)
	assert.Equal(t, SkipNoContent, f.Check(&article.Record{URL: "https://a.com/4", Body: " \n\t"}).Reason)
	assert.Equal(t, SkipDuplicate, f.Check(rec("https://a.com/1#comments", 500)).Reason)

	assert.Equal(t, Counts{Accepted: 1, NoContent: 2, TooShort: 1, Duplicate: 1}, f.Counts())
	assert.Equal(t, 4, f.Counts().Rejected())
}

func TestFilterKeepsQueryVariants(t *testing.T) {
	f := New(nil)
	assert.True(t, f.Check(rec("https://a.com/p?id=1", 300)).Accepted)
	assert.True(t, f.Check(rec("https://a.com/p?id=2", 300)).Accepted)
}

func TestFilterIsRunScoped(t *testing.T) {
	first := New(nil)
	assert.True(t, first.Check(rec("https://a.com/1", 300)).Accepted)

	second := New(nil)
	assert.True(t, second.Check(rec("https://a.com/1", 300)).Accepted)
}

func TestTooShortDuplicateCountsAsTooShort(t *testing.T) {
	f := New(nil)
	f.Check(rec("https://a.com/1", 300))
	assert.Equal(t, SkipTooShort, f.Check(rec("https://a.com/1", 10)).Reason)
}

func TestSkipReasonString(t *testing.T) {
	assert.Equal(t, "too_short", SkipTooShort.String())
	assert.Equal(t, "duplicate", SkipDuplicate.String())
	assert.Equal(t, "no_content", SkipNoContent.String())
}
