package walker

import (
	"strings"
	"testing"

	"github.com/scanvui/backend/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func walkMarkup(t *testing.T, markup string, opts ...Option) *Result {
	t.Helper()
	doc, err := dom.ParseString(markup, "")
	require.NoError(t, err)
	return Walk(doc.Root(), opts...)
}

func ids(res *Result) []string {
	var out []string
	for _, v := range res.Nodes {
		if id := dom.AttrOr(v.Node, "id", ""); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func TestWalkOrder(t *testing.T) {
	res := walkMarkup(t, `<html><head></head><body>
		<div id="a"><p id="a1"></p></div>
		<x-card id="host">
			<template shadowrootmode="open"><span id="s1"><b id="s2"></b></span></template>
			<p id="light"></p>
		</x-card>
		<div id="z"></div>
	</body></html>`)

	assert.Equal(t, []string{"a", "a1", "host", "s1", "s2", "light", "z"}, ids(res))
	assert.Equal(t, 1, res.BoundaryCrossings)
	assert.Equal(t, 1, res.CustomElements)
	assert.Zero(t, res.Skipped)

	for _, v := range res.Nodes {
		id := dom.AttrOr(v.Node, "id", "")
		assert.Equal(t, strings.HasPrefix(id, "s"), v.CrossedBoundary, "node %q", id)
		assert.False(t, dom.IsElement(v.Node, "template"), "templates are never visited")
	}
}

func TestWalkDepth(t *testing.T) {
	res := walkMarkup(t, `<html><body><div id="d1"><x-a id="host"><template shadowrootmode="open"><i id="deep"></i></template></x-a></div></body></html>`)

	body, ok := res.Lookup(res.Nodes[1].Node)
	require.True(t, ok)
	assert.Equal(t, "body", dom.Tag(body.Node))
	assert.Equal(t, 0, body.Depth)

	depths := map[string]int{}
	for _, v := range res.Nodes {
		depths[dom.AttrOr(v.Node, "id", dom.Tag(v.Node))] = v.Depth
	}
	assert.Equal(t, 1, depths["d1"])
	assert.Equal(t, 2, depths["host"])
	assert.Equal(t, 3, depths["deep"], "depth carries on across the boundary")
	assert.Equal(t, 3, res.MaxDepth)
}

func TestWalkDepthCap(t *testing.T) {
	markup := "<html><body>" + strings.Repeat("<div>", 30) + strings.Repeat("</div>", 30) + "</body></html>"

	res := walkMarkup(t, markup)
	assert.Equal(t, MaxDepth, res.MaxDepth)
	for _, v := range res.Nodes {
		assert.LessOrEqual(t, v.Depth, MaxDepth)
	}
	// head and body at depth 0, then one div per level
	assert.Len(t, res.Nodes, 2+MaxDepth)

	shallow := walkMarkup(t, markup, WithMaxDepth(3))
	assert.Equal(t, 3, shallow.MaxDepth)
	assert.Len(t, shallow.Nodes, 5)
}

func TestWalkEach(t *testing.T) {
	markup := `<html><head><title>t</title></head><body>` + strings.Repeat("<div>", 30) + strings.Repeat("</div>", 30) + "</body></html>"
	doc, err := dom.ParseString(markup, "")
	require.NoError(t, err)

	res := WalkEach([]*html.Node{doc.Head(), doc.Body()})
	require.NotEmpty(t, res.Nodes)
	assert.Equal(t, "title", dom.Tag(res.Nodes[0].Node))
	assert.Equal(t, 0, res.Nodes[0].Depth)
	assert.Equal(t, 0, res.Nodes[1].Depth, "depth restarts for the second root")
	assert.Equal(t, MaxDepth, res.MaxDepth)
	// the title plus one div for each of the levels 0 through MaxDepth
	assert.Len(t, res.Nodes, 1+MaxDepth+1)

	twice := WalkEach([]*html.Node{doc.Body(), doc.Body(), nil})
	assert.Len(t, twice.Nodes, MaxDepth+1)
}

func TestWalkRestartable(t *testing.T) {
	doc, err := dom.ParseString(`<body><form><input><x-y><template shadowrootmode="open"><input></template></x-y></form></body>`, "")
	require.NoError(t, err)

	first := Walk(doc.Root())
	second := Walk(doc.Root())
	require.Len(t, second.Nodes, len(first.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i], second.Nodes[i])
	}
	assert.Equal(t, first.BoundaryCrossings, second.BoundaryCrossings)
}

func TestWalkSkipsUnreadableChildren(t *testing.T) {
	root := &html.Node{Type: html.ElementNode, Data: "html"}
	broken := &html.Node{Type: html.ElementNode, Data: "div"}
	root.AppendChild(broken)

	// a child that claims a different parent
	stray := &html.Node{Type: html.ElementNode, Data: "span", Parent: root}
	broken.FirstChild = stray
	broken.LastChild = stray

	res := Walk(root)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, broken, res.Nodes[0].Node)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, res.Visited(stray))
}

func TestWalkCyclicSiblings(t *testing.T) {
	root := &html.Node{Type: html.ElementNode, Data: "html"}
	a := &html.Node{Type: html.ElementNode, Data: "p", Parent: root}
	b := &html.Node{Type: html.ElementNode, Data: "p", Parent: root}
	a.NextSibling = b
	b.NextSibling = a
	root.FirstChild = a

	res := Walk(root)
	assert.Empty(t, res.Nodes)
	assert.Equal(t, 1, res.Skipped)
}

func TestWalkNilRoot(t *testing.T) {
	res := Walk(nil)
	assert.Empty(t, res.Nodes)
	assert.False(t, res.Visited(nil))

	var missing *Result
	_, ok := missing.Lookup(nil)
	assert.False(t, ok)
}
