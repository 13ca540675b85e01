// Package classifier turns visited elements into typed records: forms,
// fields, buttons, links, media, tables, frames and document metadata.
package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/walker"
	"golang.org/x/net/html"
)

// Extractor builds the record for an element that matched. A nil record with
// a nil error means the element is deliberately not materialised.
type Extractor func(doc *dom.Document, v walker.VisitedNode) (Record, error)

// Matcher pairs a structural predicate with the extractor for its category.
type Matcher struct {
	Category Category
	Match    cascadia.Selector
	Extract  Extractor
}

var (
	linkSelector       = cascadia.MustCompile("a[href]")
	headingSelector    = cascadia.MustCompile("h1, h2, h3, h4, h5, h6")
	imageSelector      = cascadia.MustCompile("img")
	videoSelector      = cascadia.MustCompile(`video, iframe[src*="youtube"], iframe[src*="vimeo"]`)
	audioSelector      = cascadia.MustCompile("audio")
	tableSelector      = cascadia.MustCompile("table")
	frameSelector      = cascadia.MustCompile("iframe, frame")
	scriptSelector     = cascadia.MustCompile("script")
	stylesheetSelector = cascadia.MustCompile(`link[rel~="stylesheet"][href], style`)
	metaSelector       = cascadia.MustCompile("meta")
	headLinkSelector   = cascadia.MustCompile("link[rel]")
	formSelector       = cascadia.MustCompile("form")
)

// DefaultMatchers returns the ordered matcher set used for scans. An element
// may match several of them; an <input type=submit> is both field-shaped and
// a button, and the form pass keeps it out of field lists.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Category: CategoryForm, Match: formSelector, Extract: extractForm},
		{Category: CategoryField, Match: IsFieldCandidate, Extract: extractField},
		{Category: CategoryButton, Match: IsButtonCandidate, Extract: extractButton},
		{Category: CategoryLink, Match: linkSelector, Extract: extractLink},
		{Category: CategoryHeading, Match: headingSelector, Extract: extractHeading},
		{Category: CategoryImage, Match: imageSelector, Extract: extractImage},
		{Category: CategoryVideo, Match: videoSelector, Extract: extractVideo},
		{Category: CategoryAudio, Match: audioSelector, Extract: extractAudio},
		{Category: CategoryTable, Match: tableSelector, Extract: extractTable},
		{Category: CategoryFrame, Match: frameSelector, Extract: extractFrame},
		{Category: CategoryLandmark, Match: isLandmark, Extract: extractLandmark},
		{Category: CategoryScript, Match: scriptSelector, Extract: extractScript},
		{Category: CategoryStylesheet, Match: stylesheetSelector, Extract: extractStylesheet},
		{Category: CategoryMeta, Match: metaSelector, Extract: extractMeta},
		{Category: CategoryHeadLink, Match: isHeadLink, Extract: extractHeadLink},
	}
}

// Classifier runs the matcher set against visited elements of one document.
type Classifier struct {
	doc      *dom.Document
	matchers []Matcher
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithMatchers replaces the default matcher set.
func WithMatchers(m []Matcher) ClassifierOption {
	return func(c *Classifier) {
		c.matchers = m
	}
}

// WithLogger sets the logger for skipped elements.
func WithLogger(l *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Classifier for doc.
func New(doc *dom.Document, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		doc:      doc,
		matchers: DefaultMatchers(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns every record v produces, in matcher order. A matcher that
// fails on v only drops that one record; the failures come back joined so
// the caller can count them.
func (c *Classifier) Classify(v walker.VisitedNode) ([]Record, error) {
	var (
		records []Record
		errs    []error
	)
	for _, m := range c.matchers {
		rec, err := c.apply(m, v)
		if err != nil {
			c.logger.Debug("skipping element", "category", m.Category, "tag", dom.Tag(v.Node), "error", err)
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, errors.Join(errs...)
}

// apply guards a single matcher so that a bad element can not take the whole
// pass down.
func (c *Classifier) apply(m Matcher, v walker.VisitedNode) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = &dom.NodeAccessError{Op: "classify " + string(m.Category), Tag: dom.Tag(v.Node), Err: fmt.Errorf("%v", r)}
		}
	}()

	if v.Node == nil || v.Node.Type != html.ElementNode {
		return nil, &dom.NodeAccessError{Op: "classify " + string(m.Category), Tag: dom.Tag(v.Node)}
	}
	if !m.Match(v.Node) {
		return nil, nil
	}

	rec, err = m.Extract(c.doc, v)
	if err != nil {
		var nae *dom.NodeAccessError
		if !errors.As(err, &nae) {
			err = &dom.NodeAccessError{Op: "classify " + string(m.Category), Tag: dom.Tag(v.Node), Err: err}
		}
		return nil, err
	}
	return rec, nil
}

func attr(n *html.Node, key string) string {
	return strings.TrimSpace(dom.AttrOr(n, key, ""))
}

func lowerAttr(n *html.Node, key string) string {
	return strings.ToLower(attr(n, key))
}
