package classifier

// Category names the bucket a record belongs to.
type Category string

const (
	CategoryForm       Category = "form"
	CategoryField      Category = "field"
	CategoryButton     Category = "button"
	CategoryLink       Category = "link"
	CategoryHeading    Category = "heading"
	CategoryImage      Category = "image"
	CategoryVideo      Category = "video"
	CategoryAudio      Category = "audio"
	CategoryTable      Category = "table"
	CategoryFrame      Category = "frame"
	CategoryLandmark   Category = "landmark"
	CategoryScript     Category = "script"
	CategoryStylesheet Category = "stylesheet"
	CategoryMeta       Category = "meta"
	CategoryHeadLink   Category = "headLink"
)

// Record is the typed result of classifying one element. The set of
// implementations is closed: every concrete type lives in this package.
type Record interface {
	Category() Category
	isRecord()
}

// FormRecord describes a <form>, or the synthetic orphan form that collects
// fields with no enclosing form.
type FormRecord struct {
	Index      int           `json:"index"`
	Name       string        `json:"name,omitempty"`
	Action     string        `json:"action,omitempty"`
	Method     string        `json:"method,omitempty"`
	Enctype    string        `json:"enctype,omitempty"`
	InBoundary bool          `json:"inBoundary"`
	IsOrphan   bool          `json:"isOrphan"`
	Fields     []FieldRecord `json:"fields"`
}

// Constraints holds the validation attributes of a control. Unset values are
// omitted.
type Constraints struct {
	Pattern   string `json:"pattern,omitempty"`
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Min       string `json:"min,omitempty"`
	Max       string `json:"max,omitempty"`
	Step      string `json:"step,omitempty"`
}

// Option is one <option> of a select.
type Option struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// FieldRecord describes one user-editable control.
type FieldRecord struct {
	Tag             string      `json:"tag"`
	Type            ControlType `json:"type"`
	Name            string      `json:"name,omitempty"`
	ID              string      `json:"id,omitempty"`
	Label           string      `json:"label,omitempty"`
	Placeholder     string      `json:"placeholder,omitempty"`
	Required        bool        `json:"required"`
	Disabled        bool        `json:"disabled"`
	Readonly        bool        `json:"readonly"`
	Constraints     Constraints `json:"constraints"`
	Autocomplete    string      `json:"autocomplete,omitempty"`
	AriaLabel       string      `json:"ariaLabel,omitempty"`
	AriaDescribedBy string      `json:"ariaDescribedBy,omitempty"`
	ClassName       string      `json:"className,omitempty"`
	Options         []Option    `json:"options,omitempty"`
	InBoundary      bool        `json:"inBoundary"`
	HasValue        bool        `json:"hasValue"`
}

// DisplayName returns the label, falling back to name, id and placeholder.
func (f *FieldRecord) DisplayName() string {
	for _, s := range []string{f.Label, f.Name, f.ID, f.Placeholder} {
		if s != "" {
			return s
		}
	}
	return ""
}

// ButtonRecord describes anything that acts as a button.
type ButtonRecord struct {
	Text       string `json:"text"`
	Type       string `json:"type"`
	Disabled   bool   `json:"disabled"`
	InBoundary bool   `json:"inBoundary"`
}

// LinkRecord describes an a[href].
type LinkRecord struct {
	Text     string       `json:"text"`
	Href     string       `json:"href"`
	Kind     LinkCategory `json:"category"`
	Target   string       `json:"target,omitempty"`
	Rel      string       `json:"rel,omitempty"`
}

// HeadingRecord describes an h1-h6.
type HeadingRecord struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
}

// ImageRecord describes an <img>.
type ImageRecord struct {
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt,omitempty"`
	HasAlt  bool   `json:"hasAlt"`
	Width   string `json:"width,omitempty"`
	Height  string `json:"height,omitempty"`
	Loading string `json:"loading,omitempty"`
}

// VideoRecord describes a <video> or an embedded video player frame.
type VideoRecord struct {
	Src      string `json:"src,omitempty"`
	Kind     string `json:"kind"`
	Poster   string `json:"poster,omitempty"`
	Controls bool   `json:"controls"`
	Autoplay bool   `json:"autoplay"`
}

// AudioRecord describes an <audio>.
type AudioRecord struct {
	Src      string `json:"src,omitempty"`
	Controls bool   `json:"controls"`
	Autoplay bool   `json:"autoplay"`
}

// TableRecord summarises a <table> without looking into its cells.
type TableRecord struct {
	Rows       int    `json:"rows"`
	Columns    int    `json:"columns"`
	HasHeader  bool   `json:"hasHeader"`
	Caption    string `json:"caption,omitempty"`
	InBoundary bool   `json:"inBoundary"`
}

// FrameRecord describes an <iframe> or <frame>.
type FrameRecord struct {
	Tag       string `json:"tag"`
	Src       string `json:"src,omitempty"`
	Name      string `json:"name,omitempty"`
	Title     string `json:"title,omitempty"`
	Sandboxed bool   `json:"sandboxed"`
	Sandbox   string `json:"sandbox,omitempty"`
	Allow     string `json:"allow,omitempty"`
	Loading   string `json:"loading,omitempty"`
}

// LandmarkRecord marks a structural landmark, by tag or by role.
type LandmarkRecord struct {
	Landmark string `json:"landmark"`
	ByRole   bool   `json:"byRole"`
}

// ScriptRecord describes a <script>. Body is only kept for JSON-LD blocks.
type ScriptRecord struct {
	Src      string `json:"src,omitempty"`
	Type     string `json:"type,omitempty"`
	External bool   `json:"external"`
	Body     string `json:"-"`
}

// IsStructuredData reports whether the script carries JSON-LD.
func (s *ScriptRecord) IsStructuredData() bool {
	return s.Type == "application/ld+json"
}

// StylesheetRecord describes a <style> or link[rel=stylesheet].
type StylesheetRecord struct {
	Href     string `json:"href,omitempty"`
	External bool   `json:"external"`
}

// MetaRecord is one <meta> element.
type MetaRecord struct {
	Name      string `json:"name,omitempty"`
	Property  string `json:"property,omitempty"`
	Content   string `json:"content,omitempty"`
	Charset   string `json:"charset,omitempty"`
	HTTPEquiv string `json:"httpEquiv,omitempty"`
}

// HeadLinkRecord is a <link> element such as canonical or icon.
type HeadLinkRecord struct {
	Rel  string `json:"rel"`
	Href string `json:"href,omitempty"`
}

func (*FormRecord) Category() Category       { return CategoryForm }
func (*FieldRecord) Category() Category      { return CategoryField }
func (*ButtonRecord) Category() Category     { return CategoryButton }
func (*LinkRecord) Category() Category       { return CategoryLink }
func (*HeadingRecord) Category() Category    { return CategoryHeading }
func (*ImageRecord) Category() Category      { return CategoryImage }
func (*VideoRecord) Category() Category      { return CategoryVideo }
func (*AudioRecord) Category() Category      { return CategoryAudio }
func (*TableRecord) Category() Category      { return CategoryTable }
func (*FrameRecord) Category() Category      { return CategoryFrame }
func (*LandmarkRecord) Category() Category   { return CategoryLandmark }
func (*ScriptRecord) Category() Category     { return CategoryScript }
func (*StylesheetRecord) Category() Category { return CategoryStylesheet }
func (*MetaRecord) Category() Category       { return CategoryMeta }
func (*HeadLinkRecord) Category() Category   { return CategoryHeadLink }

func (*FormRecord) isRecord()       {}
func (*FieldRecord) isRecord()      {}
func (*ButtonRecord) isRecord()     {}
func (*LinkRecord) isRecord()       {}
func (*HeadingRecord) isRecord()    {}
func (*ImageRecord) isRecord()      {}
func (*VideoRecord) isRecord()      {}
func (*AudioRecord) isRecord()      {}
func (*TableRecord) isRecord()      {}
func (*FrameRecord) isRecord()      {}
func (*LandmarkRecord) isRecord()   {}
func (*ScriptRecord) isRecord()     {}
func (*StylesheetRecord) isRecord() {}
func (*MetaRecord) isRecord()       {}
func (*HeadLinkRecord) isRecord()   {}
