// Package dom models a parsed, live-looking HTML document: element trees,
// declarative shadow roots acting as encapsulation boundaries, and the
// tree-scoped lookups the scanner needs on top of golang.org/x/net/html.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed page together with the location it was loaded from.
type Document struct {
	doc      *goquery.Document
	location *url.URL
	base     *url.URL
}

// Parse reads HTML from r. pageURL is the location of the page; it may be
// empty when the markup has no origin, in which case relative links stay
// relative and every absolute link counts as external.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	if pageURL != "" {
		loc, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
		}
		doc.Url = loc
	}

	return NewDocument(doc), nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// NewDocument wraps an already parsed goquery document.
func NewDocument(doc *goquery.Document) *Document {
	d := &Document{doc: doc}
	if doc == nil {
		return d
	}

	d.location = doc.Url
	d.base = doc.Url

	// <base href> changes how relative URLs resolve, not where the page lives
	if href, ok := doc.Find("head base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			if d.base != nil {
				d.base = d.base.ResolveReference(ref)
			} else if ref.IsAbs() {
				d.base = ref
			}
		}
	}

	return d
}

// Selection exposes the underlying goquery document.
func (d *Document) Selection() *goquery.Document {
	if d == nil {
		return nil
	}
	return d.doc
}

// Root returns the document element, or nil when there is none.
func (d *Document) Root() *html.Node {
	if d == nil || d.doc == nil || len(d.doc.Nodes) == 0 {
		return nil
	}

	n := d.doc.Nodes[0]
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Body returns the <body> element if the document has one.
func (d *Document) Body() *html.Node {
	return d.child("body")
}

// Head returns the head element, or nil when there is none.
func (d *Document) Head() *html.Node {
	return d.child("head")
}

func (d *Document) child(tag string) *html.Node {
	root := d.Root()
	if root == nil {
		return nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, tag) {
			return c
		}
	}
	return nil
}

// Location returns the page URL, or nil for markup without an origin.
func (d *Document) Location() *url.URL {
	if d == nil {
		return nil
	}
	return d.location
}

// Base returns the URL relative references resolve against.
func (d *Document) Base() *url.URL {
	if d == nil {
		return nil
	}
	return d.base
}

// URL returns the page URL as a string.
func (d *Document) URL() string {
	if d == nil || d.location == nil {
		return ""
	}
	return d.location.String()
}

// Host returns the lower-cased hostname of the page location.
func (d *Document) Host() string {
	if d == nil || d.location == nil {
		return ""
	}
	return strings.ToLower(d.location.Hostname())
}

// Resolve turns an attribute value into an absolute URL where possible.
func (d *Document) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base := d.Base(); base != nil {
		return base.ResolveReference(u).String()
	}
	return u.String()
}

// Title mirrors document.title: the first <title> in the document scope with
// whitespace collapsed.
func (d *Document) Title() string {
	root := d.Root()
	if root == nil {
		return ""
	}
	if t := First(root, func(n *html.Node) bool { return IsElement(n, "title") }); t != nil {
		return CollapseSpace(TextContent(t))
	}
	return ""
}

// Lang returns the lang attribute of the document element.
func (d *Document) Lang() string {
	return strings.TrimSpace(AttrOr(d.Root(), "lang", ""))
}
