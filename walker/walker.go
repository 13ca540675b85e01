// Package walker flattens a document into the ordered list of elements a scan
// works from, crossing declarative shadow roots on the way.
package walker

import (
	"log/slog"
	"strings"

	"github.com/scanvui/backend/dom"
	"golang.org/x/net/html"
)

// MaxDepth is the deepest level that is visited. Children of the walk root
// sit at depth 0.
const MaxDepth = 20

// VisitedNode is one element reached by a walk.
type VisitedNode struct {
	Node            *html.Node
	Depth           int
	CrossedBoundary bool
}

// Result is the outcome of a single walk. It is owned by the caller that ran
// the walk and is not shared across scans.
type Result struct {
	Nodes             []VisitedNode
	BoundaryCrossings int
	CustomElements    int
	MaxDepth          int
	Skipped           int

	index map[*html.Node]int
}

// Lookup returns the visit record for n, if n was visited.
func (r *Result) Lookup(n *html.Node) (VisitedNode, bool) {
	if r == nil {
		return VisitedNode{}, false
	}
	i, ok := r.index[n]
	if !ok {
		return VisitedNode{}, false
	}
	return r.Nodes[i], true
}

// Visited reports whether n is part of the walk.
func (r *Result) Visited(n *html.Node) bool {
	_, ok := r.Lookup(n)
	return ok
}

type options struct {
	logger   *slog.Logger
	maxDepth int
}

// Option configures Walk.
type Option func(*options)

// WithLogger sets the logger used for skipped nodes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxDepth overrides MaxDepth.
func WithMaxDepth(d int) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxDepth = d
		}
	}
}

type frame struct {
	node    *html.Node
	depth   int
	crossed bool
}

// Walk visits the element descendants of root in pre-order. A host's shadow
// root is entered right after the host is recorded and before its light
// children. Depth is counted continuously across boundaries and nothing
// deeper than the depth cap is ever pushed. A node whose children cannot be
// read is kept but treated as a leaf.
func Walk(root *html.Node, opts ...Option) *Result {
	return WalkEach([]*html.Node{root}, opts...)
}

// WalkEach walks every root in order into one Result. Depth restarts at 0
// for the children of each root; nodes reachable from more than one root
// are recorded once.
func WalkEach(roots []*html.Node, opts ...Option) *Result {
	o := options{logger: slog.Default(), maxDepth: MaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{index: make(map[*html.Node]int)}
	for _, root := range roots {
		if root != nil {
			walk(root, &o, res)
		}
	}
	return res
}

func walk(root *html.Node, o *options, res *Result) {
	var stack []frame
	stack = pushChildren(stack, root, 0, dom.IsShadowRoot(root), o, res)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// a hostile tree can hand the same node out twice
		if _, seen := res.index[f.node]; seen {
			continue
		}

		res.index[f.node] = len(res.Nodes)
		res.Nodes = append(res.Nodes, VisitedNode{Node: f.node, Depth: f.depth, CrossedBoundary: f.crossed})
		if f.depth > res.MaxDepth {
			res.MaxDepth = f.depth
		}
		if strings.Contains(f.node.Data, "-") {
			res.CustomElements++
		}

		// pushed first so it pops after the shadow tree
		stack = pushChildren(stack, f.node, f.depth+1, f.crossed, o, res)

		if shadow := dom.ShadowRoot(f.node); shadow != nil {
			res.BoundaryCrossings++
			stack = pushChildren(stack, shadow, f.depth+1, true, o, res)
		}
	}
}

func pushChildren(stack []frame, parent *html.Node, depth int, crossed bool, o *options, res *Result) []frame {
	if depth > o.maxDepth {
		return stack
	}

	kids, err := dom.Children(parent)
	if err != nil {
		res.Skipped++
		o.logger.Debug("skipping unreadable node", "tag", parent.Data, "depth", depth-1, "error", err)
		return stack
	}

	for i := len(kids) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: kids[i], depth: depth, crossed: crossed})
	}
	return stack
}
