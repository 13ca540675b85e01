package analyzer

import (
	"maps"
	"slices"
	"time"

	"github.com/scanvui/backend/classifier"
)

// Report represents the complete surface of a scanned page
type Report struct {
	URL                   string                       `json:"url"`
	Title                 string                       `json:"title"`
	Timestamp             time.Time                    `json:"timestamp"`
	Forms                 []classifier.FormRecord      `json:"forms"`
	TotalFieldCount       int                          `json:"totalFieldCount"`
	Buttons               []classifier.ButtonRecord    `json:"buttons"`
	ButtonsTotal          int                          `json:"buttonsTotal"`
	Links                 []classifier.LinkRecord      `json:"links"`
	LinksTotal            int                          `json:"linksTotal"`
	Headings              []classifier.HeadingRecord   `json:"headings"`
	HeadingsTotal         int                          `json:"headingsTotal"`
	Media                 Media                        `json:"media"`
	Tables                List[classifier.TableRecord] `json:"tables"`
	Frames                List[classifier.FrameRecord] `json:"frames"`
	BoundaryCrossingCount int                          `json:"boundaryCrossingCount"`
	CustomElementCount    int                          `json:"customElementCount"`
	Metadata              Metadata                     `json:"metadata"`
	NavigationStats       NavigationStats              `json:"navigationStats"`
	AccessibilityStats    AccessibilityStats           `json:"accessibilityStats"`
	Scripts               ResourceStats                `json:"scripts"`
	Stylesheets           ResourceStats                `json:"stylesheets"`
	Semantic              SemanticStats                `json:"semantic"`
	Performance           PerformanceStats             `json:"performance"`

	// Diagnostics never leaves the process
	Diagnostics Diagnostics `json:"-"`
}

// List is a capped detail list paired with the true count.
type List[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

type Media struct {
	Images ImageStats                   `json:"images"`
	Videos List[classifier.VideoRecord] `json:"videos"`
	Audio  List[classifier.AudioRecord] `json:"audio"`
}

type ImageStats struct {
	Total       int                      `json:"total"`
	WithAlt     int                      `json:"withAlt"`
	WithoutAlt  int                      `json:"withoutAlt"`
	AltCoverage int                      `json:"altCoverage"`
	Items       []classifier.ImageRecord `json:"items"`
}

type Metadata struct {
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Keywords       string            `json:"keywords,omitempty"`
	Robots         string            `json:"robots,omitempty"`
	Viewport       string            `json:"viewport,omitempty"`
	Charset        string            `json:"charset,omitempty"`
	Canonical      string            `json:"canonical,omitempty"`
	Language       string            `json:"language,omitempty"`
	Favicon        string            `json:"favicon,omitempty"`
	OpenGraph      map[string]string `json:"openGraph"`
	Twitter        map[string]string `json:"twitter"`
	StructuredData []any             `json:"structuredData"`
}

type NavigationStats struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	Anchor   int `json:"anchor"`
	Contact  int `json:"contact"`
}

type AccessibilityStats struct {
	AriaLabels         int  `json:"ariaLabels"`
	Roles              int  `json:"roles"`
	Tabindex           int  `json:"tabindex"`
	Labels             int  `json:"labels"`
	SkipLinks          int  `json:"skipLinks"`
	HasLang            bool `json:"hasLang"`
	AltCoverage        int  `json:"altCoverage"`
	FieldsWithoutLabel int  `json:"fieldsWithoutLabel"`
}

// ResourceStats tallies scripts or stylesheets by where their source lives.
type ResourceStats struct {
	Total    int `json:"total"`
	Inline   int `json:"inline"`
	External int `json:"external"`
}

type SemanticStats struct {
	Header  int `json:"header"`
	Nav     int `json:"nav"`
	Main    int `json:"main"`
	Footer  int `json:"footer"`
	Aside   int `json:"aside"`
	Section int `json:"section"`
	Article int `json:"article"`
	Search  int `json:"search"`
}

type PerformanceStats struct {
	DOMElements        int `json:"domElements"`
	DOMDepth           int `json:"domDepth"`
	InlineStyles       int `json:"inlineStyles"`
	DeprecatedElements int `json:"deprecatedElements"`
}

// Diagnostics counts what a scan had to leave out. Reports stay silent about
// it; the service turns it into metrics.
type Diagnostics struct {
	VisitedNodes    int
	WalkSkipped     int
	ClassifySkipped int
	MalformedBlocks int
	ScanDuration    time.Duration
}

// Clone returns a copy of r whose slices and maps can be changed without
// touching r. Decoded structured data values are shared.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r

	c.Forms = slices.Clone(r.Forms)
	for i := range c.Forms {
		fields := slices.Clone(c.Forms[i].Fields)
		for j := range fields {
			fields[j].Options = slices.Clone(fields[j].Options)
		}
		c.Forms[i].Fields = fields
	}
	c.Buttons = slices.Clone(r.Buttons)
	c.Links = slices.Clone(r.Links)
	c.Headings = slices.Clone(r.Headings)
	c.Media.Images.Items = slices.Clone(r.Media.Images.Items)
	c.Media.Videos.Items = slices.Clone(r.Media.Videos.Items)
	c.Media.Audio.Items = slices.Clone(r.Media.Audio.Items)
	c.Tables.Items = slices.Clone(r.Tables.Items)
	c.Frames.Items = slices.Clone(r.Frames.Items)
	c.Metadata.OpenGraph = maps.Clone(r.Metadata.OpenGraph)
	c.Metadata.Twitter = maps.Clone(r.Metadata.Twitter)
	c.Metadata.StructuredData = slices.Clone(r.Metadata.StructuredData)
	return &c
}
