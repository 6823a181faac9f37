// Package pattern compiles pattern source text into a PatternNode tree that
// pkg/matcher can walk alongside a candidate document.
package pattern

import (
	"context"
	"fmt"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/metavar"
)

// Strictness controls how tolerant the matcher is of unnamed/trivia nodes
// and terminal text differences. Ordered strict to lax.
type Strictness int

const (
	// Cst requires an exact concrete-syntax match: every unnamed token in
	// the pattern must be present and match in the candidate.
	Cst Strictness = iota
	// Smart is the default: same as Cst but slightly more forgiving about
	// which comparisons it performs (see pkg/matcher's dispatch table).
	Smart
	// Ast skips unnamed/trivia nodes and comments on both sides.
	Ast
	// Relaxed behaves like Ast but additionally tolerates trailing optional
	// pattern nodes (e.g. a trailing comma).
	Relaxed
	// Signature behaves like Relaxed but ignores terminal text entirely.
	Signature
)

func (s Strictness) String() string {
	switch s {
	case Cst:
		return "cst"
	case Smart:
		return "smart"
	case Ast:
		return "ast"
	case Relaxed:
		return "relaxed"
	case Signature:
		return "signature"
	default:
		return "unknown"
	}
}

// ParseStrictness parses the rule-config spelling of a strictness level.
func ParseStrictness(s string) (Strictness, error) {
	switch s {
	case "", "smart":
		return Smart, nil
	case "cst":
		return Cst, nil
	case "ast":
		return Ast, nil
	case "relaxed":
		return Relaxed, nil
	case "signature":
		return Signature, nil
	default:
		return Smart, fmt.Errorf("pattern: unknown strictness %q", s)
	}
}

// Variant discriminates the three PatternNode shapes.
type Variant int

const (
	Terminal Variant = iota
	Internal
	MetaVarNode
)

// PatternNode is a compiled pattern tree node.
type PatternNode struct {
	Variant Variant

	// Populated for Terminal and Internal.
	Kind   string
	KindID uint16
	Named  bool

	// Terminal only.
	Text string

	// Internal only, in source order, missing nodes already dropped.
	Children []*PatternNode

	// MetaVarNode only.
	MetaVar metavar.MetaVar
}

// Pattern is a compiled PatternNode plus the constraints governing how it
// is matched.
type Pattern struct {
	Root       *PatternNode
	RootKind   string // set for contextual patterns; empty otherwise
	Strictness Strictness
}

// Source is the input to Compile: either a plain pattern string, or a
// contextual pattern (a surrounding snippet plus a kind selector).
type Source struct {
	Pattern    string
	Context    string
	Selector   string
	Strictness Strictness
}

// Error is a pattern-compilation failure, tagged with one of the kinds
// named in the rule-config error contract.
type Error struct {
	Kind string // NoContent | MultipleNode | InvalidKind | NoSelectorInContext
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("pattern: %s: %s", e.Kind, e.Msg) }

func errNoContent(msg string) error             { return &Error{Kind: "NoContent", Msg: msg} }
func errMultipleNode(msg string) error          { return &Error{Kind: "MultipleNode", Msg: msg} }
func errInvalidKind(msg string) error           { return &Error{Kind: "InvalidKind", Msg: msg} }
func errNoSelectorInContext(msg string) error    { return &Error{Kind: "NoSelectorInContext", Msg: msg} }

// Compile parses src.Pattern (or src.Context when contextual) under
// language and produces a Pattern.
func Compile(ctx context.Context, language lang.Language, src Source) (*Pattern, error) {
	text := src.Pattern
	contextual := src.Context != ""
	if contextual {
		text = src.Context
	}

	processed := language.PreProcessPattern(text)
	if len(processed) == 0 {
		return nil, errNoContent("pattern text is empty after preprocessing")
	}

	document, err := doc.New(ctx, []byte(processed), language)
	if err != nil {
		return nil, fmt.Errorf("pattern: parse failed: %w", err)
	}
	root := document.Root()

	var patternRoot doc.Node
	rootKind := ""

	if contextual {
		if src.Selector == "" {
			return nil, errInvalidKind("contextual pattern requires a selector")
		}
		ids := language.KindToID(src.Selector)
		if len(ids) == 0 {
			return nil, errInvalidKind(fmt.Sprintf("unknown selector kind %q", src.Selector))
		}
		found, ok := findByKind(root, src.Selector)
		if !ok {
			return nil, errNoSelectorInContext(fmt.Sprintf("selector %q matches nothing inside context", src.Selector))
		}
		patternRoot = found
		rootKind = src.Selector
	} else {
		reduced, atRoot, significant := reduceSingleMatcher(root)
		if atRoot {
			switch len(significant) {
			case 0:
				return nil, errNoContent("pattern has no content")
			default:
				if len(significant) > 1 {
					return nil, errMultipleNode(fmt.Sprintf("pattern has %d top-level siblings, expected exactly one", len(significant)))
				}
			}
		}
		patternRoot = reduced
	}

	pn, err := convertNode(patternRoot, language)
	if err != nil {
		return nil, err
	}

	return &Pattern{Root: pn, RootKind: rootKind, Strictness: src.Strictness}, nil
}

// significantChildren drops parser-synthesized missing/empty nodes.
func significantChildren(n doc.Node) []doc.Node {
	children := n.Children()
	out := make([]doc.Node, 0, len(children))
	for _, c := range children {
		if c.IsMissing() {
			continue
		}
		if c.StartByte() == c.EndByte() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// reduceSingleMatcher descends into n, skipping nodes with exactly one
// significant child, until reaching a branching point. atRoot is true if no
// descent happened at all (so a multiple/zero count reflects the caller's
// own top-level pattern rather than some inner, legitimately multi-child
// subtree).
func reduceSingleMatcher(n doc.Node) (result doc.Node, atRoot bool, atRootSignificant []doc.Node) {
	cur := n
	first := true
	var firstSignificant []doc.Node
	for {
		significant := significantChildren(cur)
		if first {
			firstSignificant = significant
		}
		if len(significant) != 1 {
			break
		}
		cur = significant[0]
		first = false
	}
	return cur, first, firstSignificant
}

// findByKind searches n's subtree (pre-order) for the first node whose kind
// matches selector.
func findByKind(n doc.Node, selector string) (doc.Node, bool) {
	var found doc.Node
	ok := false
	doc.Walk(n, doc.PreOrder, func(candidate doc.Node) bool {
		if candidate.Kind() == selector {
			found = candidate
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// convertNode converts a parsed doc.Node subtree into a PatternNode. The
// metavariable check runs on every node's full text, not just leaves: a
// statement node wholly wrapping "$$$" is itself the metavariable, which is
// what lets an ellipsis span sibling statements inside a block.
func convertNode(n doc.Node, language lang.Language) (*PatternNode, error) {
	if mv, ok := language.ExtractMetaVar(n.Text()); ok {
		return &PatternNode{Variant: MetaVarNode, Kind: n.Kind(), KindID: n.KindID(), MetaVar: mv}, nil
	}
	if n.IsLeaf() {
		return &PatternNode{Variant: Terminal, Kind: n.Kind(), KindID: n.KindID(), Named: n.IsNamed(), Text: n.Text()}, nil
	}

	significant := significantChildren(n)
	children := make([]*PatternNode, 0, len(significant))
	for _, c := range significant {
		cn, err := convertNode(c, language)
		if err != nil {
			return nil, err
		}
		children = append(children, cn)
	}
	return &PatternNode{Variant: Internal, Kind: n.Kind(), KindID: n.KindID(), Named: n.IsNamed(), Children: children}, nil
}

// FixedString returns the longest literal terminal in the pattern, usable
// by a file walker to cheaply skip files that cannot possibly match. An
// empty result means no useful literal was found (e.g. a bare metavariable
// pattern).
func (p *Pattern) FixedString() string {
	longest := ""
	var visit func(*PatternNode)
	visit = func(n *PatternNode) {
		if n == nil {
			return
		}
		switch n.Variant {
		case Terminal:
			if len(n.Text) > len(longest) {
				longest = n.Text
			}
		case Internal:
			for _, c := range n.Children {
				visit(c)
			}
		}
	}
	visit(p.Root)
	return longest
}

// PotentialKinds returns the set of kind ids this pattern's root can ever
// match, or nil if the root is unconstrained (a bare metavariable).
func (p *Pattern) PotentialKinds() map[uint16]bool {
	if p.Root == nil || p.Root.Variant == MetaVarNode {
		return nil
	}
	return map[uint16]bool{p.Root.KindID: true}
}
