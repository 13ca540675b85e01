package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/scanvui/backend/classifier"
	"github.com/scanvui/backend/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedClock = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

func scanMarkup(t *testing.T, markup, pageURL string) *Report {
	t.Helper()
	doc, err := dom.ParseString(markup, pageURL)
	require.NoError(t, err)
	report, err := Scan(doc, WithClock(fixedClock))
	require.NoError(t, err)
	return report
}

func TestScanLoginPage(t *testing.T) {
	report := scanMarkup(t, `<!DOCTYPE html>
<html lang="en">
<head><title>Sign in</title></head>
<body>
  <form id="login" method="post" action="/session">
    <label for="user">Username</label>
    <input id="user" name="user" type="text">
    <input type="hidden" name="csrf" value="abc">
  </form>
  <a href="http://same-host/page#frag">Jump</a>
  <a href="http://other-host/">Elsewhere</a>
</body>
</html>`, "http://same-host/page")

	assert.Equal(t, 1, report.TotalFieldCount)
	require.Len(t, report.Forms, 1)
	require.Len(t, report.Forms[0].Fields, 1)
	assert.Equal(t, "Username", report.Forms[0].Fields[0].Label)
	assert.Equal(t, "POST", report.Forms[0].Method)
	assert.Equal(t, "http://same-host/session", report.Forms[0].Action)

	assert.Equal(t, 2, report.LinksTotal)
	assert.Equal(t, NavigationStats{Anchor: 1, External: 1}, report.NavigationStats)
	assert.Equal(t, "Sign in", report.Title)
	assert.Equal(t, "http://same-host/page", report.URL)
	assert.Equal(t, fixedClock(), report.Timestamp)
	assert.True(t, report.AccessibilityStats.HasLang)
	assert.Zero(t, report.AccessibilityStats.FieldsWithoutLabel)
}

func TestScanIsIdempotent(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
		<form><input name="a"><x-pick><template shadowrootmode="open"><select name="b"><option>1</option></select></template></x-pick></form>
		<input name="loose"><button>Go</button><img src="a.png">
	</body></html>`, "https://example.com/")
	require.NoError(t, err)

	first, err := Scan(doc, WithClock(fixedClock))
	require.NoError(t, err)
	second, err := Scan(doc, WithClock(fixedClock))
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestScanShadowFields(t *testing.T) {
	report := scanMarkup(t, `<html><body>
		<form id="checkout" name="checkout">
			<input name="email" type="email">
			<x-card-input>
				<template shadowrootmode="open">
					<label for="cc">Card number</label>
					<input id="cc" name="cc">
					<button type="submit">Pay</button>
				</template>
			</x-card-input>
		</form>
		<x-widget><template shadowrootmode="open"><form name="inner"><textarea name="msg"></textarea></form></template></x-widget>
	</body></html>`, "https://shop.example/")

	require.Len(t, report.Forms, 2)
	checkout := report.Forms[0]
	assert.Equal(t, "checkout", checkout.Name)
	assert.False(t, checkout.InBoundary)
	require.Len(t, checkout.Fields, 2)
	assert.Equal(t, "email", checkout.Fields[0].Name)
	assert.False(t, checkout.Fields[0].InBoundary)
	assert.Equal(t, "cc", checkout.Fields[1].Name)
	assert.Equal(t, "Card number", checkout.Fields[1].Label)
	assert.True(t, checkout.Fields[1].InBoundary)

	inner := report.Forms[1]
	assert.Equal(t, 1, inner.Index)
	assert.True(t, inner.InBoundary)
	require.Len(t, inner.Fields, 1)
	assert.Equal(t, classifier.ControlTextarea, inner.Fields[0].Type)

	assert.Equal(t, 2, report.BoundaryCrossingCount)
	assert.Equal(t, 2, report.CustomElementCount)
	require.Len(t, report.Buttons, 1)
	assert.True(t, report.Buttons[0].InBoundary)
}

func TestScanOrphanFields(t *testing.T) {
	report := scanMarkup(t, `<html><body>
		<input name="search" placeholder="Search">
		<form name="contact"><input name="email"><input type="submit" value="Send"></form>
		<div contenteditable="true"></div>
	</body></html>`, "")

	require.Len(t, report.Forms, 2)
	assert.Equal(t, "contact", report.Forms[0].Name)
	require.Len(t, report.Forms[0].Fields, 1, "the submit input is a button, not a field")

	orphan := report.Forms[1]
	assert.True(t, orphan.IsOrphan)
	assert.Equal(t, classifier.OrphanFormName, orphan.Name)
	assert.Equal(t, 1, orphan.Index)
	assert.Empty(t, orphan.Method)
	require.Len(t, orphan.Fields, 2)
	assert.Equal(t, "search", orphan.Fields[0].Name)
	assert.Equal(t, classifier.ControlContentEditable, orphan.Fields[1].Type)

	assert.Equal(t, 3, report.TotalFieldCount)
	assert.Equal(t, 1, report.ButtonsTotal)
	assert.Equal(t, 3, report.AccessibilityStats.FieldsWithoutLabel)
}

func TestScanWithoutFields(t *testing.T) {
	report := scanMarkup(t, `<html><body><p>Nothing to fill in</p></body></html>`, "")

	assert.Empty(t, report.Forms)
	assert.NotNil(t, report.Forms)
	assert.Zero(t, report.TotalFieldCount)
	assert.NotNil(t, report.Buttons)
	assert.NotNil(t, report.Links)
	assert.Equal(t, 100, report.Media.Images.AltCoverage)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"forms":[]`)
	assert.Contains(t, string(out), `"structuredData":[]`)
	assert.NotContains(t, string(out), "VisitedNodes")
}

func TestScanCaps(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 130; i++ {
		fmt.Fprintf(&sb, `<a href="/p/%d">Page %d</a><button>B%d</button>`, i, i, i)
	}
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, `<h3>Heading %d</h3>`, i)
		if i%2 == 0 {
			fmt.Fprintf(&sb, `<img src="/i/%d.png" alt="Image %d">`, i, i)
		} else {
			fmt.Fprintf(&sb, `<img src="/i/%d.png">`, i)
		}
	}
	for i := 0; i < 12; i++ {
		sb.WriteString(`<table><tr><td>x</td></tr></table>`)
	}
	sb.WriteString("</body></html>")

	report := scanMarkup(t, sb.String(), "https://example.com/")

	assert.Len(t, report.Links, MaxLinks)
	assert.Equal(t, 130, report.LinksTotal)
	assert.Equal(t, "Page 0", report.Links[0].Text)
	assert.Len(t, report.Buttons, MaxButtons)
	assert.Equal(t, 130, report.ButtonsTotal)
	assert.Len(t, report.Headings, MaxHeadings)
	assert.Equal(t, 60, report.HeadingsTotal)
	assert.Len(t, report.Media.Images.Items, MaxImages)
	assert.Equal(t, 60, report.Media.Images.Total)
	assert.Equal(t, 30, report.Media.Images.WithAlt)
	assert.Equal(t, 30, report.Media.Images.WithoutAlt)
	assert.Equal(t, 50, report.Media.Images.AltCoverage)
	assert.Len(t, report.Tables.Items, MaxTables)
	assert.Equal(t, 12, report.Tables.Total)

	nav := report.NavigationStats
	assert.Equal(t, report.LinksTotal, nav.Internal+nav.External+nav.Anchor+nav.Contact)
}

func TestScanFieldCountMatchesForms(t *testing.T) {
	report := scanMarkup(t, `<html><body>
		<form><input name="a"><input name="b" type="checkbox"><select name="c"></select></form>
		<form><textarea name="d"></textarea><input type="reset"></form>
		<div role="textbox"></div>
		<x-a><template shadowrootmode="open"><input name="e"></template></x-a>
	</body></html>`, "")

	sum := 0
	for i, f := range report.Forms {
		assert.Equal(t, i, f.Index)
		sum += len(f.Fields)
	}
	assert.Equal(t, report.TotalFieldCount, sum)
	assert.Equal(t, 6, sum)
	assert.True(t, report.Forms[len(report.Forms)-1].IsOrphan)
}

func TestScanMetadata(t *testing.T) {
	report := scanMarkup(t, `<html lang="de"><head>
		<meta charset="UTF-8">
		<meta name="Description" content="A page">
		<meta name="viewport" content="width=device-width">
		<meta property="og:title" content="OG title">
		<meta property="og:title" content="second one is ignored">
		<meta name="twitter:card" content="summary">
		<link rel="canonical" href="/canonical">
		<link rel="shortcut icon" href="/favicon.ico">
		<link rel="stylesheet" href="/site.css">
		<style>body{}</style>
		<script src="/app.js"></script>
		<script type="application/ld+json">{"@type": "Organization", "name": "ACME"}</script>
		<script type="application/ld+json">{not json</script>
	</head><body>
		<header></header><nav></nav><main role="main"></main><div role="contentinfo"></div>
		<a href="#main" class="skip-link">Skip</a>
		<center style="color:red">old</center>
		<tt>mono</tt><font>sized</font>
	</body></html>`, "https://example.com/about")

	md := report.Metadata
	assert.Equal(t, "utf-8", md.Charset)
	assert.Equal(t, "A page", md.Description)
	assert.Equal(t, "width=device-width", md.Viewport)
	assert.Equal(t, "de", md.Language)
	assert.Equal(t, map[string]string{"title": "OG title"}, md.OpenGraph)
	assert.Equal(t, map[string]string{"card": "summary"}, md.Twitter)
	assert.Equal(t, "https://example.com/canonical", md.Canonical)
	assert.Equal(t, "https://example.com/favicon.ico", md.Favicon)
	require.Len(t, md.StructuredData, 1)
	assert.Equal(t, "ACME", md.StructuredData[0].(map[string]any)["name"])
	assert.Equal(t, 1, report.Diagnostics.MalformedBlocks)

	assert.Equal(t, ResourceStats{Total: 3, Inline: 2, External: 1}, report.Scripts)
	assert.Equal(t, ResourceStats{Total: 2, Inline: 1, External: 1}, report.Stylesheets)
	assert.Equal(t, SemanticStats{Header: 1, Nav: 1, Main: 1, Footer: 1}, report.Semantic)

	assert.Equal(t, 1, report.AccessibilityStats.SkipLinks)
	assert.Equal(t, 2, report.Performance.DeprecatedElements, "font and center count, tt does not")
	assert.Equal(t, 1, report.Performance.InlineStyles)
	assert.Equal(t, 1, report.NavigationStats.Anchor)
}

func TestScanDepthCountsFromBody(t *testing.T) {
	nested := func(levels int) string {
		return `<html><head><meta name="description" content="deep page"></head><body>` +
			strings.Repeat("<div>", levels) + `<input name="deep">` + strings.Repeat("</div>", levels) +
			`</body></html>`
	}

	// 20 wrappers put the input at depth 20, the deepest visited level
	report := scanMarkup(t, nested(20), "")
	assert.Equal(t, 1, report.TotalFieldCount)
	assert.Equal(t, 20, report.Performance.DOMDepth)
	assert.Equal(t, "deep page", report.Metadata.Description)

	report = scanMarkup(t, nested(21), "")
	assert.Zero(t, report.TotalFieldCount)
	assert.Empty(t, report.Forms)
	assert.Equal(t, "deep page", report.Metadata.Description, "head is walked on its own")
}

func TestScanNoDocument(t *testing.T) {
	_, err := Scan(nil)
	assert.ErrorIs(t, err, dom.ErrNoDocument)

	_, err = Scan(dom.NewDocument(nil))
	assert.ErrorIs(t, err, dom.ErrNoDocument)
}
