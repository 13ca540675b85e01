package classifier

import (
	"net/url"
	"strings"

	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/walker"
)

// LinkCategory partitions links. Every link gets exactly one.
type LinkCategory string

const (
	LinkInternal LinkCategory = "internal"
	LinkExternal LinkCategory = "external"
	LinkAnchor   LinkCategory = "anchor"
	LinkContact  LinkCategory = "contact"
)

const maxLinkText = 80

// CategorizeLink sorts raw into one link category and returns the href
// resolved against base. The first rule that matches wins:
//
//   - anchor: a bare fragment, or a fragment link on the page's own host
//   - contact: tel: and mailto:
//   - external: a host other than the page's
//   - internal: everything else
//
// location is the page URL; a nil location has no host, so every absolute
// link is external.
func CategorizeLink(raw string, base, location *url.URL) (LinkCategory, string) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "#") {
		return LinkAnchor, resolveRef(raw, base)
	}

	u, err := url.Parse(raw)
	if err != nil {
		// unparseable hrefs stay on the page as far as the browser is concerned
		return LinkInternal, raw
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	pageHost := ""
	if location != nil {
		pageHost = strings.ToLower(location.Hostname())
	}
	host := strings.ToLower(u.Hostname())

	switch scheme := strings.ToLower(u.Scheme); {
	case u.Fragment != "" && host == pageHost && scheme != "tel" && scheme != "mailto":
		return LinkAnchor, u.String()
	case scheme == "tel" || scheme == "mailto":
		return LinkContact, u.String()
	case host != "" && host != pageHost:
		return LinkExternal, u.String()
	}
	return LinkInternal, u.String()
}

func resolveRef(raw string, base *url.URL) string {
	if base == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(u).String()
}

func extractLink(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	category, href := CategorizeLink(dom.AttrOr(n, "href", ""), doc.Base(), doc.Location())

	text := dom.CollapseSpace(dom.TextContent(n))
	if text == "" {
		text = attr(n, "aria-label")
	}
	if text == "" {
		text = noText
	}

	return &LinkRecord{
		Text:     dom.Truncate(text, maxLinkText),
		Href:     href,
		Kind:     category,
		Target:   attr(n, "target"),
		Rel:      attr(n, "rel"),
	}, nil
}
