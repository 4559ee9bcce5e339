package retrieve

import (
	"fmt"
	"strings"
)

// Markdown renders a query and its results as a report, one section per
// chunk in rank order.
func Markdown(query string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q\n\n", strings.TrimSpace(query))

	if len(results) == 0 {
		b.WriteString("No matching chunks.\n")
		return b.String()
	}

	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, title)

		var meta []string
		if r.SourceType != "" {
			meta = append(meta, r.SourceType)
		}
		if r.Author != "" {
			meta = append(meta, r.Author)
		}
		if r.PublishedAt != "" {
			meta = append(meta, r.PublishedAt)
		}
		meta = append(meta, fmt.Sprintf("distance %.4f", r.Distance), "`"+r.ChunkID+"`")
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))

		for _, line := range strings.Split(strings.TrimSpace(r.Text), "\n") {
			fmt.Fprintf(&b, "> %s\n", line)
		}
		fmt.Fprintf(&b, "\n[Read the article](%s)\n\n", r.SourceLink)
	}
	return b.String()
}
