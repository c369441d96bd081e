package feed

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const feedLinkSelector = `link[rel~="alternate"][type="application/rss+xml"], link[rel~="alternate"][type="application/atom+xml"]`

// Discoverer looks for an advertised feed in an HTML page that was served
// where a feed was expected.
type Discoverer struct{}

func NewDiscoverer() *Discoverer {
	return &Discoverer{}
}

// Run returns the first advertised feed URL resolved against pageURL, or ""
// when the page advertises none.
func (d *Discoverer) Run(pageURL string, data []byte) string {
	if len(data) == 0 {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	href, ok := doc.Find(feedLinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	suggested := base.ResolveReference(ref).String()
	slog.Debug("Feed link discovered", "page", pageURL, "suggested", suggested)

	return suggested
}
