package feed

import (
	"strings"
)

// NormalizeURL folds the variations that commonly point at the same feed:
// letter case, one trailing slash and the http scheme.
func NormalizeURL(url string) string {
	normalized := strings.ToLower(url)
	normalized = strings.TrimSuffix(normalized, "/")
	if rest, ok := strings.CutPrefix(normalized, "http://"); ok {
		normalized = "https://" + rest
	}
	return normalized
}

type Deduplicator struct{}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Run keeps the first feed for every normalized URL. Later occurrences are
// returned separately, both slices in input order.
func (d *Deduplicator) Run(feeds []Feed) ([]Feed, []Feed) {
	seen := make(map[string]struct{}, len(feeds))
	unique := make([]Feed, 0, len(feeds))
	var duplicates []Feed

	for _, f := range feeds {
		key := NormalizeURL(f.XMLURL)
		if _, ok := seen[key]; ok {
			duplicates = append(duplicates, f)
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, f)
	}

	return unique, duplicates
}
