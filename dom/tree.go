package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// IsElement reports whether n is an element with the given tag. An empty tag
// matches any element.
func IsElement(n *html.Node, tag string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return tag == "" || n.Data == tag
}

// Tag returns the lower-cased tag name of an element.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when the attribute is absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

func isTemplate(n *html.Node) bool {
	return IsElement(n, "template") && n.Namespace == ""
}

func declaresShadowRoot(n *html.Node) bool {
	return isTemplate(n) && (HasAttr(n, "shadowrootmode") || HasAttr(n, "shadowroot"))
}

// ShadowRoot returns the declarative shadow root attached to host, or nil.
// Only the first declaring template counts; later ones stay inert.
func ShadowRoot(host *html.Node) *html.Node {
	if host == nil || host.Type != html.ElementNode || isTemplate(host) {
		return nil
	}
	for c := host.FirstChild; c != nil; c = c.NextSibling {
		if declaresShadowRoot(c) {
			return c
		}
	}
	return nil
}

// IsShadowRoot reports whether n is the shadow root of its parent.
func IsShadowRoot(n *html.Node) bool {
	return declaresShadowRoot(n) && ShadowRoot(n.Parent) == n
}

// Children returns the element children of n as seen from inside its own tree
// scope: shadow roots are skipped (see ShadowRoot) and inert templates have
// none. A child list that does not point back at n, or that loops, means the
// node is detached or hostile and yields a *NodeAccessError.
func Children(n *html.Node) ([]*html.Node, error) {
	if n == nil {
		return nil, &NodeAccessError{Op: "children", Tag: "nil"}
	}
	if isTemplate(n) && !IsShadowRoot(n) {
		return nil, nil
	}

	kids, err := childList(n)
	if err != nil {
		return nil, &NodeAccessError{Op: "children", Tag: Tag(n), Err: err}
	}

	out := kids[:0]
	for _, c := range kids {
		if c.Type != html.ElementNode || IsShadowRoot(c) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// childList returns every child node of n. Alongside the nodes read so far it
// reports a child whose Parent is not n, and a sibling list that loops back on
// itself.
func childList(n *html.Node) ([]*html.Node, error) {
	var out []*html.Node
	fast := n.FirstChild
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Parent != n {
			return out, errDetached
		}
		out = append(out, c)

		if fast != nil {
			fast = fast.NextSibling
		}
		if fast != nil {
			fast = fast.NextSibling
		}
		if fast != nil && fast == c.NextSibling {
			return out, errCycle
		}
	}
	return out, nil
}

var (
	errDetached = detachedError("child does not belong to its parent")
	errCycle    = detachedError("sibling list loops")
)

type detachedError string

func (e detachedError) Error() string { return string(e) }

// ScopeOf returns the root of the tree scope containing n: the shadow root it
// lives under, or the top-most ancestor for light-tree nodes.
func ScopeOf(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	top := n
	hops := 0
	for p := n.Parent; p != nil && hops < maxScopeDepth; p, hops = p.Parent, hops+1 {
		if IsShadowRoot(p) {
			return p
		}
		top = p
	}
	return top
}

// InShadowTree reports whether n sits below a shadow root.
func InShadowTree(n *html.Node) bool {
	return IsShadowRoot(ScopeOf(n))
}

// Closest returns n or its nearest ancestor with the given tag, without
// leaving n's tree scope.
func Closest(n *html.Node, tag string) *html.Node {
	hops := 0
	for p := n; p != nil && hops < maxScopeDepth; p, hops = p.Parent, hops+1 {
		if IsShadowRoot(p) {
			return nil
		}
		if IsElement(p, tag) {
			return p
		}
	}
	return nil
}

// ComposedParent returns the parent of n in the composed tree: for a node at
// the top of a shadow tree that is the host element.
func ComposedParent(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	if p := n.Parent; IsShadowRoot(p) {
		return p.Parent
	}
	return n.Parent
}

// ComposedClosest is Closest across encapsulation boundaries: from a shadow
// root the walk continues at the host.
func ComposedClosest(n *html.Node, tag string) *html.Node {
	hops := 0
	for p := n; p != nil && hops < maxScopeDepth; p, hops = ComposedParent(p), hops+1 {
		if IsElement(p, tag) && !isTemplate(p) {
			return p
		}
	}
	return nil
}

// PreviousElementSibling skips text, comments and declarative shadow roots.
func PreviousElementSibling(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && !IsShadowRoot(s) {
			return s
		}
	}
	return nil
}

// maxScopeDepth bounds helper traversals on hand-built trees whose parent
// links loop; parsed documents never get near it.
const maxScopeDepth = 512

// Each visits the element descendants of scope in document order without
// entering templates, so nested shadow roots are not searched. fn returns
// false to stop.
func Each(scope *html.Node, fn func(*html.Node) bool) {
	each(scope, false, fn)
}

// EachComposed is Each, but descends into shadow roots as it meets them.
func EachComposed(scope *html.Node, fn func(*html.Node) bool) {
	each(scope, true, fn)
}

type frame struct {
	node  *html.Node
	depth int
}

// pushChildren appends the children of parent so that the first child is on
// top of the stack.
func pushChildren(stack []frame, parent *html.Node, depth int) []frame {
	if depth > maxScopeDepth {
		return stack
	}
	kids, _ := childList(parent)
	for i := len(kids) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: kids[i], depth: depth})
	}
	return stack
}

func each(scope *html.Node, composed bool, fn func(*html.Node) bool) {
	if scope == nil {
		return
	}

	stack := pushChildren(make([]frame, 0, 32), scope, 0)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := f.node
		if n.Type != html.ElementNode {
			continue
		}
		if isTemplate(n) {
			if composed && IsShadowRoot(n) {
				stack = pushChildren(stack, n, f.depth+1)
			}
			continue
		}
		if !fn(n) {
			return
		}
		stack = pushChildren(stack, n, f.depth+1)
	}
}

// First returns the first element in scope matching match.
func First(scope *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	Each(scope, func(n *html.Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// ElementByID mirrors getElementById on a tree scope.
func ElementByID(scope *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return First(scope, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// LabelFor finds label[for=id] in scope.
func LabelFor(scope *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return First(scope, func(n *html.Node) bool {
		if !IsElement(n, "label") {
			return false
		}
		v, ok := Attr(n, "for")
		return ok && v == id
	})
}

// TextContent concatenates the text below n, skipping templates.
func TextContent(n *html.Node) string {
	return TextContentExcluding(n, nil)
}

// TextContentExcluding is TextContent with whole subtrees left out wherever
// skip returns true.
func TextContentExcluding(n *html.Node, skip func(*html.Node) bool) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}

	var sb strings.Builder
	stack := pushChildren(nil, n, 0)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch cur := f.node; cur.Type {
		case html.TextNode:
			sb.WriteString(cur.Data)
		case html.ElementNode:
			if isTemplate(cur) || skip != nil && skip(cur) {
				continue
			}
			stack = pushChildren(stack, cur, f.depth+1)
		}
	}
	return sb.String()
}

// CollapseSpace trims s and folds internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
