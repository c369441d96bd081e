package validation

import (
	"bytes"
	"strings"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte("\xef\xbb\xbf")

const ReasonNotAFeed = "Document is not a valid RSS or Atom feed"

type Format string

const (
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
)

// Classification is the outcome of Classify. Format is empty when the
// document is not a feed, in which case Reason says why.
type Classification struct {
	Format Format
	Reason string
}

func (c Classification) IsFeed() bool {
	return c.Format != ""
}

// Classify parses data as XML and decides whether its root structure is RSS
// or Atom. It has no side effects.
func Classify(data []byte) Classification {
	// a UTF-8 byte order mark is part of a well-formed prolog
	data = bytes.TrimPrefix(data, utf8BOM)

	parser := xpp.NewXMLPullParser(bytes.NewReader(data), true, charset.NewReaderLabel)

	var (
		root     string
		children []string
		depth    int
	)

	for {
		event, err := parser.Next()
		if err != nil {
			return Classification{Reason: err.Error()}
		}

		switch event {
		case xpp.StartTag:
			if depth == 0 && root != "" {
				return Classification{Reason: "XML syntax error: multiple root elements"}
			}
			depth++
			switch depth {
			case 1:
				root = parser.Name
			case 2:
				children = append(children, parser.Name)
			}
		case xpp.EndTag:
			depth--
		case xpp.Text:
			if depth == 0 && strings.TrimSpace(parser.Text) != "" {
				return Classification{Reason: "XML syntax error: text outside of root element"}
			}
		}

		if event == xpp.EndDocument {
			break
		}
	}

	if root == "" {
		return Classification{Reason: "XML syntax error: no root element found"}
	}

	for _, name := range children {
		if name == "rss" || name == "channel" {
			return Classification{Format: FormatRSS}
		}
	}

	if root == "feed" {
		return Classification{Format: FormatAtom}
	}

	return Classification{Reason: ReasonNotAFeed}
}
