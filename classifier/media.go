package classifier

import (
	"strconv"
	"strings"

	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/walker"
	"golang.org/x/net/html"
)

const maxCaption = 150

func extractImage(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	alt, hasAlt := dom.Attr(n, "alt")
	alt = strings.TrimSpace(alt)

	src := attr(n, "src")
	if src == "" {
		src = attr(n, "data-src")
	}

	return &ImageRecord{
		Src:     doc.Resolve(src),
		Alt:     alt,
		HasAlt:  hasAlt && alt != "",
		Width:   attr(n, "width"),
		Height:  attr(n, "height"),
		Loading: lowerAttr(n, "loading"),
	}, nil
}

func extractVideo(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	if dom.Tag(n) == "iframe" {
		return &VideoRecord{Src: doc.Resolve(attr(n, "src")), Kind: "embed"}, nil
	}

	src := attr(n, "src")
	if src == "" {
		if s := dom.First(n, func(c *html.Node) bool { return dom.IsElement(c, "source") && attr(c, "src") != "" }); s != nil {
			src = attr(s, "src")
		}
	}
	return &VideoRecord{
		Src:      doc.Resolve(src),
		Kind:     "video",
		Poster:   doc.Resolve(attr(n, "poster")),
		Controls: dom.HasAttr(n, "controls"),
		Autoplay: dom.HasAttr(n, "autoplay"),
	}, nil
}

func extractAudio(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	src := attr(n, "src")
	if src == "" {
		if s := dom.First(n, func(c *html.Node) bool { return dom.IsElement(c, "source") && attr(c, "src") != "" }); s != nil {
			src = attr(s, "src")
		}
	}
	return &AudioRecord{
		Src:      doc.Resolve(src),
		Controls: dom.HasAttr(n, "controls"),
		Autoplay: dom.HasAttr(n, "autoplay"),
	}, nil
}

// extractTable counts the table's own rows. Rows of nested tables belong to
// those tables and are not looked at.
func extractTable(_ *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	t := &TableRecord{InBoundary: v.CrossedBoundary}

	for _, row := range tableRows(n) {
		t.Rows++
		cols := 0
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			switch dom.Tag(c) {
			case "th":
				t.HasHeader = true
				cols += colspan(c)
			case "td":
				cols += colspan(c)
			}
		}
		if cols > t.Columns {
			t.Columns = cols
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch dom.Tag(c) {
		case "thead":
			t.HasHeader = true
		case "caption":
			if t.Caption == "" {
				t.Caption = dom.Truncate(dom.CollapseSpace(dom.TextContent(c)), maxCaption)
			}
		}
	}
	return t, nil
}

func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		switch dom.Tag(c) {
		case "tr":
			rows = append(rows, c)
		case "thead", "tbody", "tfoot":
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if dom.IsElement(r, "tr") {
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}

func colspan(cell *html.Node) int {
	n, err := strconv.Atoi(attr(cell, "colspan"))
	if err != nil || n < 1 {
		return 1
	}
	// browsers clamp colspan at 1000
	return min(n, 1000)
}

func extractFrame(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	n := v.Node
	sandbox, sandboxed := dom.Attr(n, "sandbox")
	return &FrameRecord{
		Tag:       dom.Tag(n),
		Src:       doc.Resolve(attr(n, "src")),
		Name:      attr(n, "name"),
		Title:     attr(n, "title"),
		Sandboxed: sandboxed,
		Sandbox:   dom.CollapseSpace(sandbox),
		Allow:     attr(n, "allow"),
		Loading:   lowerAttr(n, "loading"),
	}, nil
}
