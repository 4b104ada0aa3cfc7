package scraper

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Node is the minimal view of a parsed document the extractor works with.
type Node interface {
	// Find returns the first descendant with the given tag.
	Find(tag string) (Node, bool)
	// FindAll returns every descendant with the given tag and class, in
	// document order. An empty class matches any element with the tag.
	FindAll(tag, class string) []Node
	// Attrs returns the element's attributes.
	Attrs() map[string]string
	// Text returns the combined text of the element and its descendants.
	Text() string
}

// ParseDocument parses raw HTML into a Node tree.
func ParseDocument(raw []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return selectionNode{sel: doc.Selection}, nil
}

type selectionNode struct {
	sel *goquery.Selection
}

func (n selectionNode) Find(tag string) (Node, bool) {
	found := n.sel.Find(tag).First()
	if found.Length() == 0 {
		return nil, false
	}
	return selectionNode{sel: found}, true
}

func (n selectionNode) FindAll(tag, class string) []Node {
	selector := tag
	if class != "" {
		selector += "." + class
	}
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) Attrs() map[string]string {
	attrs := make(map[string]string)
	if len(n.sel.Nodes) == 0 {
		return attrs
	}
	for _, attr := range n.sel.Nodes[0].Attr {
		if _, ok := attrs[attr.Key]; !ok {
			attrs[attr.Key] = attr.Val
		}
	}
	return attrs
}

func (n selectionNode) Text() string {
	return n.sel.Text()
}
