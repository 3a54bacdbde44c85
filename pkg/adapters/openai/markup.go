package openai

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "object": true, "embed": true, "head": true,
}

// kept are the attributes a model needs to write a selector.
var kept = map[string]bool{
	"id": true, "class": true, "name": true, "type": true, "role": true,
	"href": true, "placeholder": true, "title": true, "alt": true, "value": true,
	"for": true, "aria-label": true, "data-testid": true, "data-test": true,
}

// Compact strips page markup down to structure, text and selector-relevant
// attributes, stopping once limit bytes have been written. The boolean reports
// truncation.
func Compact(raw string, limit int) (string, bool, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", false, fmt.Errorf("parse markup: %w", err)
	}
	w := &compactor{limit: limit}
	w.node(doc)
	return w.b.String(), w.full, nil
}

type compactor struct {
	b     strings.Builder
	limit int
	full  bool
}

func (w *compactor) write(s string) {
	if w.full {
		return
	}
	if w.limit > 0 && w.b.Len()+len(s) > w.limit {
		w.b.WriteString(s[:w.limit-w.b.Len()])
		w.full = true
		return
	}
	w.b.WriteString(s)
}

func (w *compactor) node(n *html.Node) {
	if w.full {
		return
	}
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			w.write(text)
		}
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skipped[tag] {
			return
		}
		if tag == "html" || tag == "body" {
			w.children(n)
			return
		}
		var open strings.Builder
		open.WriteString("<" + tag)
		for _, a := range n.Attr {
			if kept[a.Key] && a.Val != "" {
				fmt.Fprintf(&open, ` %s="%s"`, a.Key, html.EscapeString(a.Val))
			}
		}
		open.WriteString(">")
		w.write(open.String())
		w.children(n)
		if n.FirstChild != nil {
			w.write("</" + tag + ">")
		}
		return
	}
	w.children(n)
}

func (w *compactor) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}
