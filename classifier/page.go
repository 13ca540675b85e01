package classifier

import (
	"strings"

	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/walker"
	"golang.org/x/net/html"
)

const (
	noText        = "(no text)"
	maxButtonText = 100
	maxHeading    = 150
)

// IsButtonCandidate reports <button>, button-like inputs and role=button.
func IsButtonCandidate(n *html.Node) bool {
	return dom.IsElement(n, "button") || IsButtonControl(n) || lowerAttr(n, "role") == "button"
}

// ButtonText is the visible name of a button: its text, then the value,
// aria-label, title and alt attributes, then the alt text of an image inside
// it.
func ButtonText(n *html.Node) string {
	text := dom.CollapseSpace(dom.TextContent(n))
	for _, key := range []string{"value", "aria-label", "title", "alt"} {
		if text != "" {
			break
		}
		text = attr(n, key)
	}
	if text == "" {
		img := dom.First(n, func(c *html.Node) bool { return dom.IsElement(c, "img") && attr(c, "alt") != "" })
		text = attr(img, "alt")
	}
	if text == "" {
		text = noText
	}
	return dom.Truncate(text, maxButtonText)
}

func buttonType(n *html.Node) string {
	switch dom.Tag(n) {
	case "button":
		switch t := lowerAttr(n, "type"); t {
		case "submit", "reset", "button":
			return t
		}
		return "submit"
	case "input":
		return string(InputType(n))
	}
	return "role"
}

func extractButton(_ *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	return &ButtonRecord{
		Text:       ButtonText(n),
		Type:       buttonType(n),
		Disabled:   dom.HasAttr(n, "disabled") || lowerAttr(n, "aria-disabled") == "true",
		InBoundary: v.CrossedBoundary,
	}, nil
}

func extractHeading(_ *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	return &HeadingRecord{
		Level: strings.ToUpper(dom.Tag(n)),
		Text:  dom.Truncate(dom.CollapseSpace(dom.TextContent(n)), maxHeading),
		ID:    attr(n, "id"),
	}, nil
}

// Landmark names, keyed by the tag that implies them.
const (
	LandmarkHeader  = "header"
	LandmarkNav     = "nav"
	LandmarkMain    = "main"
	LandmarkFooter  = "footer"
	LandmarkAside   = "aside"
	LandmarkSection = "section"
	LandmarkArticle = "article"
	LandmarkSearch  = "search"
)

var landmarkTags = map[string]string{
	"header":  LandmarkHeader,
	"nav":     LandmarkNav,
	"main":    LandmarkMain,
	"footer":  LandmarkFooter,
	"aside":   LandmarkAside,
	"section": LandmarkSection,
	"article": LandmarkArticle,
	"search":  LandmarkSearch,
}

var landmarkRoles = map[string]string{
	"banner":        LandmarkHeader,
	"navigation":    LandmarkNav,
	"main":          LandmarkMain,
	"contentinfo":   LandmarkFooter,
	"complementary": LandmarkAside,
	"region":        LandmarkSection,
	"article":       LandmarkArticle,
	"search":        LandmarkSearch,
}

func isLandmark(n *html.Node) bool {
	if _, ok := landmarkTags[dom.Tag(n)]; ok {
		return true
	}
	_, ok := landmarkRoles[lowerAttr(n, "role")]
	return ok
}

// extractLandmark prefers the tag: <nav role="navigation"> is one nav.
func extractLandmark(_ *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	if l, ok := landmarkTags[dom.Tag(n)]; ok {
		return &LandmarkRecord{Landmark: l}, nil
	}
	return &LandmarkRecord{Landmark: landmarkRoles[lowerAttr(n, "role")], ByRole: true}, nil
}

func extractScript(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	s := &ScriptRecord{
		Src:      doc.Resolve(attr(n, "src")),
		Type:     lowerAttr(n, "type"),
		External: attr(n, "src") != "",
	}
	if s.IsStructuredData() {
		s.Body = dom.TextContent(n)
	}
	return s, nil
}

func extractStylesheet(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	if dom.Tag(n) == "style" {
		return &StylesheetRecord{}, nil
	}
	return &StylesheetRecord{Href: doc.Resolve(attr(n, "href")), External: true}, nil
}

func extractMeta(_ *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	return &MetaRecord{
		Name:      lowerAttr(n, "name"),
		Property:  lowerAttr(n, "property"),
		Content:   attr(n, "content"),
		Charset:   attr(n, "charset"),
		HTTPEquiv: lowerAttr(n, "http-equiv"),
	}, nil
}

// isHeadLink matches <link rel> elements other than stylesheets, which have
// their own category.
func isHeadLink(n *html.Node) bool {
	return headLinkSelector(n) && !stylesheetSelector(n)
}

func extractHeadLink(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	return &HeadLinkRecord{
		Rel:  strings.Join(strings.Fields(strings.ToLower(attr(n, "rel"))), " "),
		Href: doc.Resolve(attr(n, "href")),
	}, nil
}
