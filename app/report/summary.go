package report

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/lysyi3m/opml-comb/app/feed"
)

const unknownDomain = "unknown"

type Summary struct {
	Feeds      []feed.Feed
	Unique     int
	Duplicates []feed.Feed
	Categories map[string]int // feeds per category name, any nesting level
	Domains    map[string]int // feeds per feed URL host
}

type Count struct {
	Name  string
	Count int
}

func Summarize(feeds []feed.Feed) Summary {
	unique, duplicates := feed.NewDeduplicator().Run(feeds)

	summary := Summary{
		Feeds:      feeds,
		Unique:     len(unique),
		Duplicates: duplicates,
		Categories: make(map[string]int),
		Domains:    make(map[string]int),
	}

	for _, f := range feeds {
		for _, category := range f.Category {
			summary.Categories[category]++
		}

		if domain, ok := domainOf(f.XMLURL); ok {
			summary.Domains[domain]++
		}
	}

	return summary
}

// SortedCategories orders categories by feed count, most used first.
func (s Summary) SortedCategories() []Count {
	return sortCounts(s.Categories)
}

// TopDomains returns at most limit domains ordered by feed count.
func (s Summary) TopDomains(limit int) []Count {
	counts := sortCounts(s.Domains)
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func domainOf(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	return cmp.Or(strings.ToLower(u.Hostname()), unknownDomain), true
}

func sortCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for name, count := range m {
		counts = append(counts, Count{Name: name, Count: count})
	}

	slices.SortFunc(counts, func(a, b Count) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Name, b.Name))
	})

	return counts
}
