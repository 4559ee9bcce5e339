package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-05-29T14:00:00Z", time.Date(2025, 5, 29, 14, 0, 0, 0, time.UTC)},
		{"2025-05-29T10:00:00-04:00", time.Date(2025, 5, 29, 14, 0, 0, 0, time.UTC)},
		{"2025-05-29 14:00:00", time.Date(2025, 5, 29, 14, 0, 0, 0, time.UTC)},
		{"Updated May 29, 2025 at 3:14:00 PM", time.Date(2025, 5, 29, 15, 14, 0, 0, time.UTC)},
		{"Thu, 29 May 2025 14:00:00 +0000", time.Date(2025, 5, 29, 14, 0, 0, 0, time.UTC)},
		{"Updated May 29, 2025, at 2:31 a.m.", time.Date(2025, 5, 29, 2, 31, 0, 0, time.UTC)},
		{"May 29, 2025, at 11:05 p.m.", time.Date(2025, 5, 29, 23, 5, 0, 0, time.UTC)},
		{"Thursday, May 29, 2025", time.Date(2025, 5, 29, 0, 0, 0, 0, time.UTC)},
		{"Thursday, May 29, 2025, at 2:31 a.m.", time.Date(2025, 5, 29, 2, 31, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeDate(tt.in)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "expected %v, got %v", tt.want, *got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizeDateUnparseable(t *testing.T) {
	for _, in := range []string{"", "   ", "Updated ", "sometime last week", "Thursday"} {
		assert.Nil(t, NormalizeDate(in), "input %q", in)
	}
}
