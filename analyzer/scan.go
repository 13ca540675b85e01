package analyzer

import (
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/scanvui/backend/classifier"
	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/walker"
	"golang.org/x/net/html"
)

// Detail list caps. Forms and their fields are never capped.
const (
	MaxButtons  = 100
	MaxLinks    = 100
	MaxHeadings = 50
	MaxImages   = 50
	MaxVideos   = 20
	MaxAudio    = 10
	MaxTables   = 10
	MaxFrames   = 20
)

var skipLinkSelector = cascadia.MustCompile(`a[href^="#main"], a[href^="#content"], .skip-link`)

// deprecatedTags are the presentational elements counted as deprecated.
var deprecatedTags = map[string]bool{
	"font": true, "center": true, "marquee": true, "blink": true,
}

type scanOptions struct {
	logger *slog.Logger
	clock  func() time.Time
}

// ScanOption configures Scan.
type ScanOption func(*scanOptions)

// WithLogger sets the logger for skipped nodes and malformed blocks.
func WithLogger(l *slog.Logger) ScanOption {
	return func(o *scanOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now for the report timestamp.
func WithClock(now func() time.Time) ScanOption {
	return func(o *scanOptions) {
		if now != nil {
			o.clock = now
		}
	}
}

// formEntry keeps a registered form with the element it came from.
type formEntry struct {
	node   *html.Node
	record *classifier.FormRecord
}

// assembly holds the per-scan state. Nothing in it outlives one Scan call.
type assembly struct {
	doc    *dom.Document
	walk   *walker.Result
	logger *slog.Logger

	forms     []formEntry
	seenForms map[*html.Node]*classifier.FormRecord

	fieldNodes []*html.Node
	fields     map[*html.Node]*classifier.FieldRecord

	buttons  []classifier.ButtonRecord
	links    []classifier.LinkRecord
	headings []classifier.HeadingRecord
	images   []classifier.ImageRecord
	videos   []classifier.VideoRecord
	audio    []classifier.AudioRecord
	tables   []classifier.TableRecord
	frames   []classifier.FrameRecord
	scripts  []*classifier.ScriptRecord
	styles   []classifier.StylesheetRecord
	metas    []classifier.MetaRecord
	heads    []classifier.HeadLinkRecord

	landmarks SemanticStats
	skipped   int
}

// Scan walks doc once and assembles its Report. Element-level failures only
// shrink the counts; a missing document is the one fatal error.
func Scan(doc *dom.Document, opts ...ScanOption) (*Report, error) {
	o := scanOptions{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	root := doc.Root()
	if root == nil {
		return nil, dom.ErrNoDocument
	}

	started := time.Now()
	a := &assembly{
		doc:       doc,
		walk:      walker.WalkEach(walkRoots(doc, root), walker.WithLogger(o.logger)),
		logger:    o.logger,
		seenForms: make(map[*html.Node]*classifier.FormRecord),
		fields:    make(map[*html.Node]*classifier.FieldRecord),
	}

	a.classify()
	a.assignFields()

	report := &Report{
		URL:                   doc.URL(),
		Title:                 doc.Title(),
		Timestamp:             o.clock().UTC(),
		BoundaryCrossingCount: a.walk.BoundaryCrossings,
		CustomElementCount:    a.walk.CustomElements,
		Semantic:              a.landmarks,
	}

	for _, f := range a.forms {
		report.Forms = append(report.Forms, *f.record)
		report.TotalFieldCount += len(f.record.Fields)
	}
	if report.Forms == nil {
		report.Forms = []classifier.FormRecord{}
	}

	report.Buttons, report.ButtonsTotal = capList(a.buttons, MaxButtons)
	report.Links, report.LinksTotal = capList(a.links, MaxLinks)
	report.Headings, report.HeadingsTotal = capList(a.headings, MaxHeadings)
	report.Media = a.media()
	report.Tables = newList(a.tables, MaxTables)
	report.Frames = newList(a.frames, MaxFrames)
	report.NavigationStats = a.navigation()
	report.Scripts, report.Stylesheets = a.resources()

	var malformed int
	report.Metadata, malformed = a.metadata()
	report.Performance, report.AccessibilityStats = a.structure(report)

	report.Diagnostics = Diagnostics{
		VisitedNodes:    len(a.walk.Nodes),
		WalkSkipped:     a.walk.Skipped,
		ClassifySkipped: a.skipped,
		MalformedBlocks: malformed,
		ScanDuration:    time.Since(started),
	}
	return report, nil
}

// walkRoots returns where the walk starts. The depth cap counts from the
// children of body; head is walked on its own so metadata is never cut off.
// Documents without a body, such as framesets, are walked from the root.
func walkRoots(doc *dom.Document, root *html.Node) []*html.Node {
	body := doc.Body()
	if body == nil {
		return []*html.Node{root}
	}
	return []*html.Node{doc.Head(), body}
}

// classify runs the matcher set over the visited set once and buckets what
// comes back.
func (a *assembly) classify() {
	c := classifier.New(a.doc, classifier.WithLogger(a.logger))

	for _, v := range a.walk.Nodes {
		records, err := c.Classify(v)
		if err != nil {
			a.skipped++
		}

		for _, rec := range records {
			switch r := rec.(type) {
			case *classifier.FormRecord:
				a.registerForm(v.Node, r)
			case *classifier.FieldRecord:
				if classifier.IsButtonControl(v.Node) {
					// captured by the button matcher instead
					continue
				}
				a.fieldNodes = append(a.fieldNodes, v.Node)
				a.fields[v.Node] = r
			case *classifier.ButtonRecord:
				a.buttons = append(a.buttons, *r)
			case *classifier.LinkRecord:
				a.links = append(a.links, *r)
			case *classifier.HeadingRecord:
				a.headings = append(a.headings, *r)
			case *classifier.ImageRecord:
				a.images = append(a.images, *r)
			case *classifier.VideoRecord:
				a.videos = append(a.videos, *r)
			case *classifier.AudioRecord:
				a.audio = append(a.audio, *r)
			case *classifier.TableRecord:
				a.tables = append(a.tables, *r)
			case *classifier.FrameRecord:
				a.frames = append(a.frames, *r)
			case *classifier.LandmarkRecord:
				a.countLandmark(r)
			case *classifier.ScriptRecord:
				a.scripts = append(a.scripts, r)
			case *classifier.StylesheetRecord:
				a.styles = append(a.styles, *r)
			case *classifier.MetaRecord:
				a.metas = append(a.metas, *r)
			case *classifier.HeadLinkRecord:
				a.heads = append(a.heads, *r)
			}
		}
	}
}

// registerForm processes a form the first time it is seen and ignores it
// afterwards.
func (a *assembly) registerForm(n *html.Node, r *classifier.FormRecord) {
	if _, seen := a.seenForms[n]; seen {
		return
	}
	r.Index = len(a.forms)
	a.seenForms[n] = r
	a.forms = append(a.forms, formEntry{node: n, record: r})
}

// assignFields gives every field exactly one form. Each registered form
// queries its own subtree, shadow trees included, for the fields it owns;
// whatever is left over has no registered owner and goes to the orphan form.
func (a *assembly) assignFields() {
	assigned := make(map[*html.Node]bool, len(a.fields))

	for _, f := range a.forms {
		dom.EachComposed(f.node, func(n *html.Node) bool {
			field, ok := a.fields[n]
			if !ok || assigned[n] || classifier.OwnerForm(n) != f.node {
				return true
			}
			assigned[n] = true
			f.record.Fields = append(f.record.Fields, *field)
			return true
		})
	}

	var orphan *classifier.FormRecord
	for _, n := range a.fieldNodes {
		if assigned[n] {
			continue
		}
		assigned[n] = true

		if owner, ok := a.seenForms[classifier.OwnerForm(n)]; ok {
			owner.Fields = append(owner.Fields, *a.fields[n])
			continue
		}
		if orphan == nil {
			orphan = classifier.NewOrphanForm(len(a.forms))
			a.forms = append(a.forms, formEntry{record: orphan})
		}
		orphan.Fields = append(orphan.Fields, *a.fields[n])
	}
}

func (a *assembly) countLandmark(r *classifier.LandmarkRecord) {
	s := &a.landmarks
	switch r.Landmark {
	case classifier.LandmarkHeader:
		s.Header++
	case classifier.LandmarkNav:
		s.Nav++
	case classifier.LandmarkMain:
		s.Main++
	case classifier.LandmarkFooter:
		s.Footer++
	case classifier.LandmarkAside:
		s.Aside++
	case classifier.LandmarkSection:
		s.Section++
	case classifier.LandmarkArticle:
		s.Article++
	case classifier.LandmarkSearch:
		s.Search++
	}
}

func (a *assembly) media() Media {
	images := ImageStats{Total: len(a.images), AltCoverage: 100}
	for _, img := range a.images {
		if img.HasAlt {
			images.WithAlt++
		}
	}
	images.WithoutAlt = images.Total - images.WithAlt
	if images.Total > 0 {
		images.AltCoverage = int(math.Round(float64(images.WithAlt) / float64(images.Total) * 100))
	}
	images.Items, _ = capList(a.images, MaxImages)

	return Media{
		Images: images,
		Videos: newList(a.videos, MaxVideos),
		Audio:  newList(a.audio, MaxAudio),
	}
}

func (a *assembly) navigation() NavigationStats {
	var s NavigationStats
	for _, l := range a.links {
		switch l.Kind {
		case classifier.LinkInternal:
			s.Internal++
		case classifier.LinkExternal:
			s.External++
		case classifier.LinkAnchor:
			s.Anchor++
		case classifier.LinkContact:
			s.Contact++
		}
	}
	return s
}

func (a *assembly) resources() (scripts, styles ResourceStats) {
	for _, s := range a.scripts {
		scripts.Total++
		if s.External {
			scripts.External++
		} else {
			scripts.Inline++
		}
	}
	for _, s := range a.styles {
		styles.Total++
		if s.External {
			styles.External++
		} else {
			styles.Inline++
		}
	}
	return scripts, styles
}

// metadata builds the head summary. It also returns how many JSON-LD blocks
// had to be dropped.
func (a *assembly) metadata() (Metadata, int) {
	md := Metadata{
		Title:          a.doc.Title(),
		Language:       a.doc.Lang(),
		OpenGraph:      map[string]string{},
		Twitter:        map[string]string{},
		StructuredData: []any{},
	}

	for _, m := range a.metas {
		switch {
		case m.Charset != "":
			if md.Charset == "" {
				md.Charset = strings.ToLower(m.Charset)
			}
		case m.HTTPEquiv == "content-type":
			if _, cs, ok := strings.Cut(strings.ToLower(m.Content), "charset="); ok && md.Charset == "" {
				md.Charset = strings.TrimSpace(cs)
			}
		case strings.HasPrefix(m.Property, "og:"):
			setOnce(md.OpenGraph, strings.TrimPrefix(m.Property, "og:"), m.Content)
		case strings.HasPrefix(m.Name, "twitter:"):
			setOnce(md.Twitter, strings.TrimPrefix(m.Name, "twitter:"), m.Content)
		case strings.HasPrefix(m.Property, "twitter:"):
			setOnce(md.Twitter, strings.TrimPrefix(m.Property, "twitter:"), m.Content)
		case m.Name == "description":
			setFirst(&md.Description, m.Content)
		case m.Name == "keywords":
			setFirst(&md.Keywords, m.Content)
		case m.Name == "robots":
			setFirst(&md.Robots, m.Content)
		case m.Name == "viewport":
			setFirst(&md.Viewport, m.Content)
		}
	}

	for _, l := range a.heads {
		rels := strings.Fields(l.Rel)
		for _, rel := range rels {
			switch rel {
			case "canonical":
				setFirst(&md.Canonical, l.Href)
			case "icon":
				setFirst(&md.Favicon, l.Href)
			}
		}
	}

	malformed := 0
	block := 0
	for _, s := range a.scripts {
		if !s.IsStructuredData() {
			continue
		}
		var data any
		if err := json.Unmarshal([]byte(s.Body), &data); err != nil {
			err = &dom.MalformedStructuredDataError{Index: block, Err: err}
			a.logger.Warn("dropping structured data block", "error", err)
			malformed++
		} else {
			md.StructuredData = append(md.StructuredData, data)
		}
		block++
	}
	return md, malformed
}

// structure derives the counters that look at every visited element rather
// than at one category.
func (a *assembly) structure(r *Report) (PerformanceStats, AccessibilityStats) {
	perf := PerformanceStats{
		DOMElements: len(a.walk.Nodes),
		DOMDepth:    a.walk.MaxDepth,
	}
	acc := AccessibilityStats{
		HasLang:     r.Metadata.Language != "",
		AltCoverage: r.Media.Images.AltCoverage,
	}

	for _, v := range a.walk.Nodes {
		n := v.Node
		if dom.HasAttr(n, "style") {
			perf.InlineStyles++
		}
		if deprecatedTags[dom.Tag(n)] {
			perf.DeprecatedElements++
		}
		if dom.HasAttr(n, "aria-label") {
			acc.AriaLabels++
		}
		if dom.HasAttr(n, "role") {
			acc.Roles++
		}
		if dom.HasAttr(n, "tabindex") {
			acc.Tabindex++
		}
		if dom.IsElement(n, "label") {
			acc.Labels++
		}
		if skipLinkSelector.Match(n) {
			acc.SkipLinks++
		}
	}

	for _, f := range r.Forms {
		for _, field := range f.Fields {
			if field.Label == "" {
				acc.FieldsWithoutLabel++
			}
		}
	}
	return perf, acc
}

// capList returns at most limit items together with the uncapped count.
// The result is never nil so empty categories serialise as [].
func capList[T any](items []T, limit int) ([]T, int) {
	total := len(items)
	if total > limit {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out, total
}

func newList[T any](items []T, limit int) List[T] {
	capped, total := capList(items, limit)
	return List[T]{Total: total, Items: capped}
}

func setFirst(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setOnce(m map[string]string, key, v string) {
	if _, ok := m[key]; !ok && key != "" {
		m[key] = v
	}
}
