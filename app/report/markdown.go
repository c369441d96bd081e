package report

import (
	"fmt"
	"strings"
	"time"
)

const (
	generatedAtLayout = "2006-01-02 15:04:05"
	topDomainsLimit   = 10
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escape(text string) string {
	return textEscaper.Replace(text)
}

// Analysis renders the Markdown analysis report of a subscription list.
func Analysis(summary Summary, now time.Time) string {
	var b strings.Builder

	b.WriteString("# OPML Analysis Report\n\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", now.Format(generatedAtLayout))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "Total Feeds: %d\n", len(summary.Feeds))
	fmt.Fprintf(&b, "Unique Feeds: %d\n", summary.Unique)
	fmt.Fprintf(&b, "Categories Found: %d\n", len(summary.Categories))
	fmt.Fprintf(&b, "Unique Domains: %d\n\n", len(summary.Domains))

	if len(summary.Categories) == 0 {
		b.WriteString("No categories found\n\n")
	} else {
		b.WriteString("## Categories\n\n")
		b.WriteString("| Category | Feed Count |\n")
		b.WriteString("|----------|------------|\n")
		for _, c := range summary.SortedCategories() {
			fmt.Fprintf(&b, "| %s | %d |\n", escape(c.Name), c.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Top Domains\n\n")
	b.WriteString("| Domain | Feed Count |\n")
	b.WriteString("|--------|------------|\n")
	for _, d := range summary.TopDomains(topDomainsLimit) {
		fmt.Fprintf(&b, "| %s | %d |\n", escape(d.Name), d.Count)
	}
	b.WriteString("\n")

	if len(summary.Duplicates) == 0 {
		b.WriteString("No duplicate feeds found\n\n")
	} else {
		b.WriteString("## Duplicate Feeds Found\n\n")
		for _, f := range summary.Duplicates {
			fmt.Fprintf(&b, "### %s\n\n", escape(f.Title))
			fmt.Fprintf(&b, "- URL: %s\n", escape(f.XMLURL))
			if len(f.Category) > 0 {
				escaped := make([]string, len(f.Category))
				for i, c := range f.Category {
					escaped[i] = escape(c)
				}
				fmt.Fprintf(&b, "- Categories: %s\n", strings.Join(escaped, " > "))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## All Feeds\n\n")
	for _, f := range summary.Feeds {
		fmt.Fprintf(&b, "- %s\n", escape(f.Title))
	}
	b.WriteString("\n")

	return b.String()
}
