package classifier

import (
	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/walker"
	"golang.org/x/net/html"
)

// OrphanFormName names the synthetic form that collects fields outside any
// <form>.
const OrphanFormName = "Standalone Fields (no form)"

const (
	defaultMethod  = "GET"
	defaultEnctype = "application/x-www-form-urlencoded"
)

var formMethods = map[string]string{
	"get":    "GET",
	"post":   "POST",
	"dialog": "DIALOG",
}

var formEnctypes = map[string]bool{
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"text/plain":                        true,
}

// ExtractForm builds the FormRecord for a <form> without its fields; the
// assembler owns index assignment and field membership.
func ExtractForm(doc *dom.Document, v walker.VisitedNode) *FormRecord {
	n := v.Node

	f := &FormRecord{
		Name:       formName(n),
		Method:     defaultMethod,
		Enctype:    defaultEnctype,
		InBoundary: v.CrossedBoundary,
		Fields:     []FieldRecord{},
	}
	if dom.HasAttr(n, "action") {
		f.Action = doc.Resolve(dom.AttrOr(n, "action", ""))
		if f.Action == "" {
			// an empty action submits to the page itself
			f.Action = doc.URL()
		}
	}
	if m, ok := formMethods[lowerAttr(n, "method")]; ok {
		f.Method = m
	}
	if e := lowerAttr(n, "enctype"); formEnctypes[e] {
		f.Enctype = e
	}
	return f
}

func extractForm(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	return ExtractForm(doc, v), nil
}

// NewOrphanForm returns the synthetic form for fields with no owner.
func NewOrphanForm(index int) *FormRecord {
	return &FormRecord{
		Index:    index,
		Name:     OrphanFormName,
		IsOrphan: true,
		Fields:   []FieldRecord{},
	}
}

func formName(n *html.Node) string {
	for _, key := range []string{"name", "id", "aria-label"} {
		if s := attr(n, key); s != "" {
			return s
		}
	}
	return ""
}

// IsFormField reports whether a field-shaped element belongs in a form's
// field list. Button-like inputs are left to the buttons category.
func IsFormField(n *html.Node) bool {
	return IsFieldCandidate(n) && !IsButtonControl(n)
}
