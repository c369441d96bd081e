package feed

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"
)

const DefaultListTitle = "Feed List"

type categoryNode struct {
	name     string
	feeds    []Feed
	children []*categoryNode
}

func (n *categoryNode) child(name string) *categoryNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &categoryNode{name: name}
	n.children = append(n.children, c)
	return c
}

type Generator struct {
	title string
	now   func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{
		title: DefaultListTitle,
		now:   time.Now,
	}
}

// Run renders feeds as OPML 2.0. Uncategorized feeds come first, categorized
// feeds are nested one outline per path segment in first-seen order.
func (g *Generator) Run(feeds []Feed) (string, error) {
	root := &categoryNode{}
	for _, f := range feeds {
		node := root
		for _, name := range f.Category {
			node = node.child(name)
		}
		node.feeds = append(node.feeds, f)
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<opml version="2.0">`)
	buf.WriteString("\n  <head>\n")
	g.writeElement(&buf, "title", g.title, 4)
	g.writeElement(&buf, "dateCreated", g.now().In(time.Local).Format(time.RFC1123Z), 4)
	buf.WriteString("  </head>\n  <body>\n")

	g.writeNode(&buf, root, 4)

	buf.WriteString("  </body>\n</opml>\n")

	return buf.String(), nil
}

func (g *Generator) writeNode(buf *bytes.Buffer, node *categoryNode, indent int) {
	for _, f := range node.feeds {
		g.writeFeed(buf, f, indent)
	}

	for _, c := range node.children {
		buf.WriteString(strings.Repeat(" ", indent))
		buf.WriteString("<outline")
		g.writeAttr(buf, "text", c.name)
		g.writeAttr(buf, "title", c.name)
		buf.WriteString(">\n")
		g.writeNode(buf, c, indent+2)
		buf.WriteString(strings.Repeat(" ", indent))
		buf.WriteString("</outline>\n")
	}
}

func (g *Generator) writeFeed(buf *bytes.Buffer, f Feed, indent int) {
	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString(`<outline type="rss"`)
	g.writeAttr(buf, "text", f.Title)
	g.writeAttr(buf, "title", f.Title)
	g.writeAttr(buf, "xmlUrl", f.XMLURL)
	if f.HTMLURL != "" {
		g.writeAttr(buf, "htmlUrl", f.HTMLURL)
	}
	buf.WriteString("/>\n")
}

func (g *Generator) writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteString(`="`)
	xml.EscapeText(buf, []byte(value))
	buf.WriteByte('"')
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
