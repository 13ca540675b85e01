package classifier

import (
	"strconv"

	"github.com/scanvui/backend/dom"
	"github.com/scanvui/backend/label"
	"github.com/scanvui/backend/walker"
	"golang.org/x/net/html"
)

// ControlType is the closed set of control kinds a field can have.
type ControlType string

const (
	ControlText          ControlType = "text"
	ControlSearch        ControlType = "search"
	ControlTel           ControlType = "tel"
	ControlURL           ControlType = "url"
	ControlEmail         ControlType = "email"
	ControlPassword      ControlType = "password"
	ControlDate          ControlType = "date"
	ControlMonth         ControlType = "month"
	ControlWeek          ControlType = "week"
	ControlTime          ControlType = "time"
	ControlDateTimeLocal ControlType = "datetime-local"
	ControlNumber        ControlType = "number"
	ControlRange         ControlType = "range"
	ControlColor         ControlType = "color"
	ControlCheckbox      ControlType = "checkbox"
	ControlRadio         ControlType = "radio"
	ControlFile          ControlType = "file"
	ControlSubmit        ControlType = "submit"
	ControlImage         ControlType = "image"
	ControlReset         ControlType = "reset"
	ControlButton        ControlType = "button"
	ControlHidden        ControlType = "hidden"

	ControlSelect          ControlType = "select"
	ControlTextarea        ControlType = "textarea"
	ControlContentEditable ControlType = "contenteditable"

	ControlRoleTextbox    ControlType = "textbox"
	ControlRoleCombobox   ControlType = "combobox"
	ControlRoleListbox    ControlType = "listbox"
	ControlRoleSpinbutton ControlType = "spinbutton"
	ControlRoleSlider     ControlType = "slider"
	ControlRoleSearchbox  ControlType = "searchbox"
)

var inputTypes = map[string]ControlType{
	"text": ControlText, "search": ControlSearch, "tel": ControlTel, "url": ControlURL,
	"email": ControlEmail, "password": ControlPassword, "date": ControlDate,
	"month": ControlMonth, "week": ControlWeek, "time": ControlTime,
	"datetime-local": ControlDateTimeLocal, "number": ControlNumber, "range": ControlRange,
	"color": ControlColor, "checkbox": ControlCheckbox, "radio": ControlRadio,
	"file": ControlFile, "submit": ControlSubmit, "image": ControlImage,
	"reset": ControlReset, "button": ControlButton, "hidden": ControlHidden,
}

var fieldRoles = map[string]ControlType{
	"textbox":    ControlRoleTextbox,
	"combobox":   ControlRoleCombobox,
	"listbox":    ControlRoleListbox,
	"spinbutton": ControlRoleSpinbutton,
	"slider":     ControlRoleSlider,
	"searchbox":  ControlRoleSearchbox,
}

const (
	maxOptions     = 20
	maxClassName   = 100
	maxLengthLimit = 1000000
)

// InputType returns the effective type of an <input>; missing and unknown
// values fall back to text the way browsers do.
func InputType(n *html.Node) ControlType {
	if t, ok := inputTypes[lowerAttr(n, "type")]; ok {
		return t
	}
	return ControlText
}

// IsButtonControl reports inputs that submit, reset or act as buttons. They
// match the field matcher but never land in a form's field list.
func IsButtonControl(n *html.Node) bool {
	if !dom.IsElement(n, "input") {
		return false
	}
	switch InputType(n) {
	case ControlSubmit, ControlButton, ControlReset, ControlImage:
		return true
	}
	return false
}

func isContentEditable(n *html.Node) bool {
	if !dom.HasAttr(n, "contenteditable") {
		return false
	}
	switch lowerAttr(n, "contenteditable") {
	case "", "true", "plaintext-only":
		return true
	}
	return false
}

// IsFieldCandidate reports whether n is shaped like a form control.
func IsFieldCandidate(n *html.Node) bool {
	switch dom.Tag(n) {
	case "input", "select", "textarea":
		return true
	}
	if isContentEditable(n) {
		return true
	}
	_, ok := fieldRoles[lowerAttr(n, "role")]
	return ok
}

// OwnerForm returns the nearest enclosing <form>, following shadow roots out
// to their hosts.
func OwnerForm(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	return dom.ComposedClosest(n.Parent, "form")
}

func controlType(n *html.Node) ControlType {
	switch dom.Tag(n) {
	case "select":
		return ControlSelect
	case "textarea":
		return ControlTextarea
	case "input":
		return InputType(n)
	}
	if dom.HasAttr(n, "contenteditable") {
		return ControlContentEditable
	}
	if t, ok := fieldRoles[lowerAttr(n, "role")]; ok {
		return t
	}
	return ControlText
}

// ExtractField builds the FieldRecord for a field-shaped element. Hidden
// inputs produce no record.
func ExtractField(doc *dom.Document, v walker.VisitedNode) *FieldRecord {
	n := v.Node
	typ := controlType(n)
	if typ == ControlHidden {
		return nil
	}

	f := &FieldRecord{
		Tag:             dom.Tag(n),
		Type:            typ,
		Name:            attr(n, "name"),
		ID:              attr(n, "id"),
		Placeholder:     attr(n, "placeholder"),
		Required:        dom.HasAttr(n, "required") || lowerAttr(n, "aria-required") == "true",
		Disabled:        dom.HasAttr(n, "disabled") || lowerAttr(n, "aria-disabled") == "true",
		Readonly:        dom.HasAttr(n, "readonly"),
		Autocomplete:    attr(n, "autocomplete"),
		AriaLabel:       attr(n, "aria-label"),
		AriaDescribedBy: attr(n, "aria-describedby"),
		ClassName:       dom.Truncate(dom.CollapseSpace(dom.AttrOr(n, "class", "")), maxClassName),
		InBoundary:      v.CrossedBoundary,
		Constraints: Constraints{
			Pattern:   dom.AttrOr(n, "pattern", ""),
			MinLength: positiveInt(n, "minlength", 0),
			MaxLength: positiveInt(n, "maxlength", maxLengthLimit),
			Min:       attr(n, "min"),
			Max:       attr(n, "max"),
			Step:      attr(n, "step"),
		},
	}

	if l, ok := label.Resolve(doc, n); ok {
		f.Label = l
	}

	if typ == ControlSelect {
		f.Options = selectOptions(n)
	}

	f.HasValue = dom.AttrOr(n, "value", "") != "" || dom.CollapseSpace(dom.TextContent(n)) != ""

	return f
}

func extractField(doc *dom.Document, v walker.VisitedNode) (Record, error) {
	f := ExtractField(doc, v)
	if f == nil {
		return nil, nil
	}
	return f, nil
}

// positiveInt parses a length attribute. Zero, negative and, when limit is
// set, values at or above limit are sentinels for "no constraint".
func positiveInt(n *html.Node, key string, limit int) *int {
	raw := attr(n, key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || limit > 0 && v >= limit {
		return nil
	}
	return &v
}

func selectOptions(sel *html.Node) []Option {
	var opts []Option
	dom.Each(sel, func(n *html.Node) bool {
		if !dom.IsElement(n, "option") {
			return true
		}
		text := dom.CollapseSpace(dom.TextContent(n))
		value, ok := dom.Attr(n, "value")
		if !ok {
			value = text
		}
		opts = append(opts, Option{Value: value, Text: text, Selected: dom.HasAttr(n, "selected")})
		return len(opts) < maxOptions
	})
	return opts
}
