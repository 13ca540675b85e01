// Package render prints reports for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/scanvui/backend/analyzer"
	"github.com/scanvui/backend/classifier"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 2)

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 2)
)

// Write prints r to w in the given format.
func Write(w io.Writer, r *analyzer.Report, format string) error {
	switch format {
	case "", FormatText:
		_, err := io.WriteString(w, Summary(r)+"\n")
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// Summary renders the headline numbers and the form breakdown of a report.
func Summary(r *analyzer.Report) string {
	header := titleStyle.Render("Page surface") +
		mutedStyle.Render(fmt.Sprintf(" %s | %s", orNone(r.URL), r.Timestamp.Format("2006-01-02 15:04:05")))

	overview := []string{
		fmt.Sprintf("Title:              %s", orNone(r.Title)),
		fmt.Sprintf("Forms:              %d (%d fields)", len(r.Forms), r.TotalFieldCount),
		fmt.Sprintf("Buttons:            %d", r.ButtonsTotal),
		fmt.Sprintf("Links:              %d (internal %d, external %d, anchor %d, contact %d)",
			r.LinksTotal, r.NavigationStats.Internal, r.NavigationStats.External,
			r.NavigationStats.Anchor, r.NavigationStats.Contact),
		fmt.Sprintf("Headings:           %d", r.HeadingsTotal),
		fmt.Sprintf("Images:             %d (alt coverage %d%%)", r.Media.Images.Total, r.Media.Images.AltCoverage),
		fmt.Sprintf("Videos / Audio:     %d / %d", r.Media.Videos.Total, r.Media.Audio.Total),
		fmt.Sprintf("Tables / Frames:    %d / %d", r.Tables.Total, r.Frames.Total),
		fmt.Sprintf("Shadow roots:       %d", r.BoundaryCrossingCount),
		fmt.Sprintf("Custom elements:    %d", r.CustomElementCount),
		fmt.Sprintf("Scripts:            %d (%d external)", r.Scripts.Total, r.Scripts.External),
		fmt.Sprintf("Stylesheets:        %d (%d external)", r.Stylesheets.Total, r.Stylesheets.External),
		fmt.Sprintf("DOM elements/depth: %d / %d", r.Performance.DOMElements, r.Performance.DOMDepth),
	}

	sections := []string{header, boxStyle.Render(strings.Join(overview, "\n"))}
	for i := range r.Forms {
		sections = append(sections, renderForm(&r.Forms[i]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderForm(f *classifier.FormRecord) string {
	head := titleStyle.Render(orNone(f.Name))
	if !f.IsOrphan {
		head += mutedStyle.Render(fmt.Sprintf(" %s %s", f.Method, orNone(f.Action)))
	}

	lines := []string{head}
	for i := range f.Fields {
		field := &f.Fields[i]
		line := fmt.Sprintf("%-16s %s", field.Type, orNone(field.DisplayName()))
		if field.Required {
			line += " *"
		}
		if field.InBoundary {
			line += mutedStyle.Render(" (shadow)")
		}
		lines = append(lines, line)
	}
	if len(f.Fields) == 0 {
		lines = append(lines, mutedStyle.Render("no fields"))
	}
	return formStyle.Render(strings.Join(lines, "\n"))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
