package doc

// Order selects a tree traversal strategy.
type Order int

const (
	// PreOrder visits a node before its children.
	PreOrder Order = iota
	// PostOrder visits a node after its children.
	PostOrder
	// LevelOrder visits nodes breadth-first.
	LevelOrder
)

// Walk calls visit for every node reachable from start, in the given order.
// visit returning false stops the walk early (no further calls are made).
// Implementations avoid Go call-stack recursion for Pre/Post order, using an
// explicit cursor walk instead, so arbitrarily deep trees don't risk a stack
// overflow.
func Walk(start Node, order Order, visit func(Node) bool) {
	switch order {
	case PostOrder:
		walkPost(start, visit)
	case LevelOrder:
		walkLevel(start, visit)
	default:
		walkPre(start, visit)
	}
}

// walkPre performs a non-recursive pre-order DFS: step into the first
// child, else step to the next sibling, else trace up until a next sibling
// is found, stopping when we trace back above start.
func walkPre(start Node, visit func(Node) bool) {
	cur := start
	for {
		if !visit(cur) {
			return
		}
		if child, ok := cur.Child(0); ok {
			cur = child
			continue
		}
		for {
			if cur.SameNode(start) {
				return
			}
			if sib, ok := cur.NextSibling(); ok {
				cur = sib
				break
			}
			parent, ok := cur.Parent()
			if !ok {
				return
			}
			cur = parent
		}
	}
}

// walkPost performs a non-recursive post-order DFS: descend to the leftmost
// leaf, yield it, then alternate stepping to the next sibling (descending
// again to its leftmost leaf) and stepping up to yield the parent once all
// its children are exhausted.
func walkPost(start Node, visit func(Node) bool) {
	cur := start
	descending := true
	for {
		if descending {
			for {
				if child, ok := cur.Child(0); ok {
					cur = child
					continue
				}
				break
			}
		}
		if !visit(cur) {
			return
		}
		if cur.SameNode(start) {
			return
		}
		if sib, ok := cur.NextSibling(); ok {
			cur = sib
			descending = true
			continue
		}
		parent, ok := cur.Parent()
		if !ok {
			return
		}
		cur = parent
		descending = false
	}
}

// walkLevel performs a breadth-first traversal with a FIFO queue.
func walkLevel(start Node, visit func(Node) bool) {
	queue := []Node{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !visit(cur) {
			return
		}
		queue = append(queue, cur.Children()...)
	}
}

// Matcher is the minimal predicate a Visitor needs; pkg/matcher's Rule
// satisfies it via a thin adapter.
type Matcher interface {
	Match(Node) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(Node) bool

// Match implements Matcher.
func (f MatcherFunc) Match(n Node) bool { return f(n) }

// Visitor walks a tree yielding nodes that satisfy an optional Matcher,
// optionally restricted to named nodes, with optional re-entrancy control:
// when Reentrant is false, a node that matched is not descended into (its
// whole subtree is skipped for the purposes of yielding further matches).
// This suppression covers the whole subtree only under PreOrder; under
// PostOrder and LevelOrder a matched node's descendants may still be yielded.
type Visitor struct {
	Order     Order
	Match     Matcher // nil means every node matches
	NamedOnly bool
	Reentrant bool
}

// NewVisitor returns a Visitor with sane defaults: pre-order, every node
// matches, all nodes considered, re-entrant (descends into matched
// subtrees).
func NewVisitor() *Visitor {
	return &Visitor{Order: PreOrder, Reentrant: true}
}

// Visit walks start, calling yield for every node that passes the Matcher
// and NamedOnly filters. yield returning false stops the walk. Re-entrancy
// control is implemented by remembering the most recent match and refusing
// to yield (but still traversing, for correct cursor bookkeeping) the nodes
// that follow it in walk order while their ancestor chain passes through it.
func (v *Visitor) Visit(start Node, yield func(Node) bool) {
	var skipUntilAbove *Node // set to the matched node while its subtree is suppressed

	isDescendantOf := func(n Node, ancestor Node) bool {
		if n.SameNode(ancestor) {
			return true
		}
		for _, a := range n.Ancestors() {
			if a.SameNode(ancestor) {
				return true
			}
		}
		return false
	}

	Walk(start, v.Order, func(n Node) bool {
		if skipUntilAbove != nil {
			if isDescendantOf(n, *skipUntilAbove) {
				return true // keep traversing past it, but never yield
			}
			skipUntilAbove = nil
		}

		if v.NamedOnly && !n.IsNamed() {
			return true
		}
		if v.Match != nil && !v.Match.Match(n) {
			return true
		}

		if !v.Reentrant {
			captured := n
			skipUntilAbove = &captured
		}
		return yield(n)
	})
}

// Collect runs Visit and returns every yielded node.
func (v *Visitor) Collect(start Node) []Node {
	var out []Node
	v.Visit(start, func(n Node) bool {
		out = append(out, n)
		return true
	})
	return out
}
