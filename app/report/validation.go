package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/opml-comb/app/validation"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const fileNameLayout = "20060102_150405"

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func cell(text string) string {
	return cellEscaper.Replace(text)
}

// ValidationFileName places a timestamped report next to the input file.
func ValidationFileName(input string, now time.Time) string {
	return filepath.Join(filepath.Dir(input), fmt.Sprintf("validation_report_%s.md", now.Format(fileNameLayout)))
}

// Validation renders the standalone validation report, one table per status.
func Validation(results []validation.Result, source string, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Feed Validation Report\n\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", now.Format(generatedAtLayout))
	fmt.Fprintf(&b, "Source OPML: %s\n\n", source)

	counts := validation.CountByStatus(results)
	titleCaser := cases.Title(language.English)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total feeds checked: %d\n", len(results))
	for _, status := range validation.Statuses {
		if counts[status] > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", status, counts[status])
		}
	}
	b.WriteString("\n")

	for _, status := range validation.Statuses {
		if counts[status] == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s Feeds\n\n", titleCaser.String(string(status)))
		b.WriteString("| Feed | URL | Error | Categories |\n")
		b.WriteString("|------|-----|-------|------------|\n")
		for _, r := range results {
			if r.Status != status {
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				cell(r.Feed), cell(r.URL), cell(r.Error), cell(strings.Join(r.Categories, " > ")))
		}
		b.WriteString("\n")
	}

	writeSuggestions(&b, results)

	return b.String()
}

// ValidationSection renders the results table appended to an analysis report.
func ValidationSection(results []validation.Result) string {
	var b strings.Builder

	b.WriteString("## Feed Validation Results\n\n")
	b.WriteString("| Feed | Status | Error |\n")
	b.WriteString("|------|--------|-------|\n")
	for _, r := range results {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(r.Feed), r.Status, cell(r.Error))
	}
	b.WriteString("\n")

	return b.String()
}

func writeSuggestions(b *strings.Builder, results []validation.Result) {
	var suggested []validation.Result
	for _, r := range results {
		if r.SuggestedURL != "" {
			suggested = append(suggested, r)
		}
	}
	if len(suggested) == 0 {
		return
	}

	b.WriteString("## Suggested Feed URLs\n\n")
	b.WriteString("| Feed | URL | Suggested URL |\n")
	b.WriteString("|------|-----|---------------|\n")
	for _, r := range suggested {
		fmt.Fprintf(b, "| %s | %s | %s |\n", cell(r.Feed), cell(r.URL), cell(r.SuggestedURL))
	}
	b.WriteString("\n")
}
