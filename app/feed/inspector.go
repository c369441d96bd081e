package feed

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// Inspector reads channel metadata from a document already known to be a feed.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

func (i *Inspector) Run(data []byte) (*Metadata, error) {
	// gofeed.Parser keeps per-parse state, so each call gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:         parsed.Title,
		Link:          parsed.Link,
		ItemCount:     len(parsed.Items),
		FeedUpdatedAt: cmp.Or(parsed.UpdatedParsed, parsed.PublishedParsed),
	}

	return metadata, nil
}
