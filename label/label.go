// Package label works out the human-readable name of a form control.
package label

import (
	"strings"

	"github.com/scanvui/backend/dom"
	"golang.org/x/net/html"
)

// Resolve returns the display name of field and whether one was found. The
// sources are tried in a fixed order and the first non-empty one wins:
//
//  1. label[for=id], in the document and then in the field's shadow root
//  2. an enclosing <label>, minus the text of the controls inside it
//  3. aria-label
//  4. the text of the aria-labelledby targets, joined by spaces
//  5. a <label> immediately before the field
//
// When nothing matches, callers fall back to name, id or placeholder.
func Resolve(doc *dom.Document, field *html.Node) (string, bool) {
	if field == nil {
		return "", false
	}

	if s := byFor(doc, field); s != "" {
		return s, true
	}
	if s := byAncestor(field); s != "" {
		return s, true
	}
	if s := strings.TrimSpace(dom.AttrOr(field, "aria-label", "")); s != "" {
		return s, true
	}
	if s := byLabelledBy(doc, field); s != "" {
		return s, true
	}
	if prev := dom.PreviousElementSibling(field); dom.IsElement(prev, "label") {
		if s := text(prev); s != "" {
			return s, true
		}
	}
	return "", false
}

func documentScope(doc *dom.Document, n *html.Node) *html.Node {
	if root := doc.Root(); root != nil {
		return root
	}
	// no document handle: climb to the top of the composed tree
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	return top
}

// byFor looks the id up in the main document first. for= associations stop at
// shadow boundaries, so a field inside a shadow tree gets a second search
// rooted at its own shadow root.
func byFor(doc *dom.Document, field *html.Node) string {
	id := dom.AttrOr(field, "id", "")
	if id == "" {
		return ""
	}

	if l := dom.LabelFor(documentScope(doc, field), id); l != nil {
		if s := text(l); s != "" {
			return s
		}
	}

	if scope := dom.ScopeOf(field); dom.IsShadowRoot(scope) {
		if l := dom.LabelFor(scope, id); l != nil {
			return text(l)
		}
	}
	return ""
}

func byAncestor(field *html.Node) string {
	parent := dom.Closest(field.Parent, "label")
	if parent == nil {
		return ""
	}
	return dom.CollapseSpace(dom.TextContentExcluding(parent, func(n *html.Node) bool {
		return n == field || isControl(n)
	}))
}

func byLabelledBy(doc *dom.Document, field *html.Node) string {
	ids := strings.Fields(dom.AttrOr(field, "aria-labelledby", ""))
	if len(ids) == 0 {
		return ""
	}

	scope := dom.ScopeOf(field)
	docScope := documentScope(doc, field)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		target := dom.ElementByID(scope, id)
		if target == nil && dom.IsShadowRoot(scope) {
			target = dom.ElementByID(docScope, id)
		}
		if target == nil {
			continue
		}
		if s := text(target); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func isControl(n *html.Node) bool {
	switch dom.Tag(n) {
	case "input", "select", "textarea":
		return true
	}
	return false
}

func text(n *html.Node) string {
	return dom.CollapseSpace(dom.TextContent(n))
}
