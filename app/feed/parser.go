package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/net/html/charset"
)

const MaxCategoryDepth = 100

var (
	ErrNoBody                 = errors.New("no body element found in OPML document")
	ErrCategoryNestingTooDeep = fmt.Errorf("category nesting exceeds maximum depth of %d", MaxCategoryDepth)
)

type outline struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []outline  `xml:",any"`
}

func (o *outline) attr(name string) (string, bool) {
	for _, a := range o.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (o *outline) title() (string, bool) {
	if text, ok := o.attr("text"); ok {
		return text, true
	}
	return o.attr("title")
}

// body returns the root's direct <body> child.
func (o *outline) body() *outline {
	for i := range o.Children {
		if o.Children[i].XMLName.Local == "body" {
			return &o.Children[i]
		}
	}
	return nil
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Run flattens the outline tree under <body> into feeds in document order.
// Duplicates are kept; see Deduplicator.
func (p *Parser) Run(data []byte) ([]Feed, error) {
	var root outline

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	body := root.body()
	if body == nil {
		return nil, ErrNoBody
	}

	feeds := make([]Feed, 0)
	if err := p.walk(body, nil, &feeds); err != nil {
		return nil, err
	}

	return feeds, nil
}

func (p *Parser) walk(node *outline, categories []string, feeds *[]Feed) error {
	if len(categories) >= MaxCategoryDepth {
		return ErrCategoryNestingTooDeep
	}

	for i := range node.Children {
		child := &node.Children[i]
		if child.XMLName.Local != "outline" {
			continue
		}

		typeAttr, hasType := child.attr("type")
		xmlURL, hasXMLURL := child.attr("xmlUrl")
		title, hasTitle := child.title()

		switch {
		case !hasType && !hasXMLURL && hasTitle:
			if err := p.walk(child, append(slices.Clone(categories), title), feeds); err != nil {
				return err
			}
		case hasXMLURL && hasTitle && (!hasType || typeAttr == "rss"):
			htmlURL, _ := child.attr("htmlUrl")
			*feeds = append(*feeds, Feed{
				Title:    title,
				XMLURL:   xmlURL,
				HTMLURL:  htmlURL,
				Category: append([]string{}, categories...),
			})
		}
	}

	return nil
}
