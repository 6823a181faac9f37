// Package matcher implements the recursive structural match between a
// compiled pattern and a candidate document node, including the strictness
// policy and ellipsis-aware children matching described in the pattern
// compiler's design.
package matcher

import (
	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang"
	"github.com/oxhq/structgrep/pkg/metavar"
	"github.com/oxhq/structgrep/pkg/pattern"
)

// MatchOneNode is the outcome of comparing one pattern child against one
// candidate child during children co-iteration.
type MatchOneNode int

const (
	MatchedBoth MatchOneNode = iota
	SkipGoal
	SkipCandidate
	SkipBoth
	NoMatch
)

// NodeMatch pairs a matched node with the bindings accumulated while
// matching it.
type NodeMatch struct {
	Node doc.Node
	Env  *metavar.Env
}

// MatchNode attempts to match p against n from scratch, returning the
// resulting NodeMatch on success. It never mutates any env outside the one
// it returns.
func MatchNode(p *pattern.Pattern, n doc.Node) (*NodeMatch, bool) {
	handle := NewEnvHandle(metavar.NewEnv())
	if !matchNodeRec(p.Root, n, handle, p.Strictness) {
		return nil, false
	}
	return &NodeMatch{Node: n, Env: handle.Env()}, true
}

// MatchNodeWithEnv is like MatchNode but folds bindings into an existing
// environment via copy-on-write, for use by rule composition (All, Inside,
// ...) that must share one env across several sub-matches.
func MatchNodeWithEnv(p *pattern.Pattern, n doc.Node, env *EnvHandle) bool {
	fork := env.Fork()
	if !matchNodeRec(p.Root, n, fork, p.Strictness) {
		return false
	}
	env.Promote(fork)
	return true
}

// MatchEnd returns the byte offset where a successful match of p against n
// ends. This can be less than n.EndByte() when trailing candidate trivia
// (e.g. a semicolon not present in the pattern) was tolerated rather than
// consumed as part of the match.
func MatchEnd(p *pattern.Pattern, n doc.Node) (uint32, bool) {
	if _, ok := MatchNode(p, n); !ok {
		return 0, false
	}
	return computeEnd(p.Root, n, p.Strictness), true
}

func matchNodeRec(pn *pattern.PatternNode, cand doc.Node, env *EnvHandle, strictness pattern.Strictness) bool {
	if pn == nil {
		return false
	}
	switch pn.Variant {
	case pattern.MetaVarNode:
		switch pn.MetaVar.Kind {
		case metavar.Single:
			return env.InsertSingle(pn.MetaVar.Name, cand)
		case metavar.AnonymousSingle:
			return true
		case metavar.Multi, metavar.AnonymousMulti:
			if pn.MetaVar.Name != "" {
				env.InsertMulti(pn.MetaVar.Name, []metavar.Node{cand})
			}
			return true
		}
		return false

	case pattern.Terminal:
		if !cand.IsLeaf() {
			return false
		}
		kindOK := cand.KindID() == pn.KindID || pn.KindID == lang.ErrorKindID
		textOK := strictness == pattern.Signature || cand.Text() == pn.Text
		return kindOK && textOK && cand.IsNamed() == pn.Named

	case pattern.Internal:
		if cand.KindID() != pn.KindID && pn.KindID != lang.ErrorKindID {
			return false
		}
		return matchChildren(pn.Children, cand, env, strictness)
	}
	return false
}

func isEllipsis(p *pattern.PatternNode) bool {
	return p.Variant == pattern.MetaVarNode && (p.MetaVar.Kind == metavar.Multi || p.MetaVar.Kind == metavar.AnonymousMulti)
}

func isCommentKind(k string) bool {
	switch k {
	case "comment", "line_comment", "block_comment":
		return true
	default:
		return false
	}
}

// isSkippableCandidate reports whether an unmatched candidate child may be
// tolerated: unnamed nodes (punctuation, commas) from Smart upward; comments
// additionally from Ast upward. Cst tolerates nothing.
func isSkippableCandidate(c doc.Node, strictness pattern.Strictness) bool {
	if !c.IsNamed() {
		return strictness >= pattern.Smart
	}
	if strictness >= pattern.Ast && isCommentKind(c.Kind()) {
		return true
	}
	return false
}

// isTrivialGoal reports whether a pattern child is an unnamed terminal
// (punctuation the grammar inserted around a metavariable).
func isTrivialGoal(p *pattern.PatternNode) bool {
	return p.Variant == pattern.Terminal && !p.Named
}

func isSkippableGoal(p *pattern.PatternNode, strictness pattern.Strictness) bool {
	if strictness < pattern.Ast {
		return false
	}
	return p.Variant == pattern.Terminal && !p.Named
}

// regularStep tries a full match of one pattern child against one candidate
// child, falling back to a strictness-informed skip decision.
func regularStep(p *pattern.PatternNode, c doc.Node, env *EnvHandle, strictness pattern.Strictness) MatchOneNode {
	fork := env.Fork()
	if matchNodeRec(p, c, fork, strictness) {
		env.Promote(fork)
		return MatchedBoth
	}

	pTrivial := strictness >= pattern.Ast && p.Variant == pattern.Terminal && !p.Named
	cTrivial := isSkippableCandidate(c, strictness)
	switch {
	case pTrivial && cTrivial:
		return SkipBoth
	case pTrivial:
		return SkipGoal
	case cTrivial:
		return SkipCandidate
	default:
		return NoMatch
	}
}

// bindEllipsis binds a multi-capture; no-op for anonymous ones. matched is
// the raw run of scanned candidates; the trailing skippedAnonymous entries
// are dropped (they pair with the unnamed pattern nodes skipped after the
// ellipsis), and only named nodes are bound — the punctuation between them
// is implied by the captured range.
func bindEllipsis(mv metavar.MetaVar, matched []doc.Node, skippedAnonymous int, env *EnvHandle) {
	if mv.Name == "" {
		return
	}
	keep := len(matched) - skippedAnonymous
	if keep < 0 {
		keep = 0
	}
	wrapped := make([]metavar.Node, 0, keep)
	for _, n := range matched[:keep] {
		if !n.IsNamed() {
			continue
		}
		wrapped = append(wrapped, n)
	}
	env.InsertMulti(mv.Name, wrapped)
}

// matchChildren co-iterates pattern and candidate children, handling
// ellipsis captures and strictness-based skipping.
func matchChildren(pChildren []*pattern.PatternNode, cand doc.Node, env *EnvHandle, strictness pattern.Strictness) bool {
	cChildren := cand.Children()
	pi, ci := 0, 0

	for pi < len(pChildren) {
		p := pChildren[pi]

		if isEllipsis(p) {
			pi++

			// Trailing ellipsis swallows every remaining candidate.
			if pi == len(pChildren) {
				bindEllipsis(p.MetaVar, cChildren[ci:], 0, env)
				ci = len(cChildren)
				continue
			}

			// Skip unnamed pattern terminals after the ellipsis, counting
			// them so the same number of trailing candidates is dropped from
			// the capture.
			skippedAnonymous := 0
			for pi < len(pChildren) && isTrivialGoal(pChildren[pi]) {
				pi++
				skippedAnonymous++
			}
			if pi == len(pChildren) {
				bindEllipsis(p.MetaVar, cChildren[ci:], skippedAnonymous, env)
				ci = len(cChildren)
				continue
			}

			if isEllipsis(pChildren[pi]) {
				// Successive ellipses: the first consumes exactly one
				// candidate, and the next ellipsis starts fresh after it.
				if ci >= len(cChildren) {
					return false
				}
				bindEllipsis(p.MetaVar, cChildren[ci:ci+1], skippedAnonymous, env)
				ci++
				if ci >= len(cChildren) {
					return false
				}
				continue
			}

			// Greedy-leftmost-shortest: scan candidates into the capture
			// until the next sub-pattern matches the current one.
			matched := false
			start := ci
			for ci < len(cChildren) {
				fork := env.Fork()
				if matchNodeRec(pChildren[pi], cChildren[ci], fork, strictness) {
					bindEllipsis(p.MetaVar, cChildren[start:ci], skippedAnonymous, env)
					env.Promote(fork)
					ci++
					pi++
					matched = true
					break
				}
				ci++
			}
			if !matched {
				return false
			}
			continue
		}

		if ci >= len(cChildren) {
			if isSkippableGoal(p, strictness) {
				pi++
				continue
			}
			return false
		}

		c := cChildren[ci]
		switch regularStep(p, c, env, strictness) {
		case MatchedBoth:
			pi++
			ci++
		case SkipGoal:
			pi++
		case SkipBoth:
			pi++
			ci++
		case SkipCandidate:
			ci++
		default:
			return false
		}
	}

	for ci < len(cChildren) {
		if isSkippableCandidate(cChildren[ci], strictness) {
			ci++
			continue
		}
		return false
	}
	return true
}

// computeEnd re-walks a known-successful match to find the byte offset of
// the last pattern-consumed candidate node, so trailing tolerated trivia is
// excluded from the replaceable range.
func computeEnd(pn *pattern.PatternNode, cand doc.Node, strictness pattern.Strictness) uint32 {
	switch pn.Variant {
	case pattern.Terminal, pattern.MetaVarNode:
		return cand.EndByte()
	case pattern.Internal:
		cChildren := cand.Children()
		pi, ci := 0, 0
		lastEnd := cand.StartByte()
		scratch := func() *EnvHandle { return NewEnvHandle(metavar.NewEnv()) }

		for pi < len(pn.Children) {
			p := pn.Children[pi]

			if isEllipsis(p) {
				pi++
				for pi < len(pn.Children) && isTrivialGoal(pn.Children[pi]) {
					pi++
				}
				if pi == len(pn.Children) {
					if ci < len(cChildren) {
						lastEnd = cChildren[len(cChildren)-1].EndByte()
					}
					return lastEnd
				}
				if isEllipsis(pn.Children[pi]) {
					if ci < len(cChildren) {
						lastEnd = cChildren[ci].EndByte()
						ci++
					}
					continue
				}
				found := false
				for ; ci < len(cChildren); ci++ {
					if matchNodeRec(pn.Children[pi], cChildren[ci], scratch(), strictness) {
						lastEnd = computeEnd(pn.Children[pi], cChildren[ci], strictness)
						ci++
						pi++
						found = true
						break
					}
					lastEnd = cChildren[ci].EndByte()
				}
				if !found {
					return lastEnd
				}
				continue
			}

			if ci >= len(cChildren) {
				pi++
				continue
			}
			c := cChildren[ci]
			if matchNodeRec(p, c, scratch(), strictness) {
				lastEnd = computeEnd(p, c, strictness)
				pi++
				ci++
				continue
			}
			pTrivial := strictness >= pattern.Ast && p.Variant == pattern.Terminal && !p.Named
			cTrivial := isSkippableCandidate(c, strictness)
			switch {
			case pTrivial && cTrivial:
				pi++
				ci++
			case pTrivial:
				pi++
			case cTrivial:
				ci++
			default:
				return lastEnd
			}
		}
		return lastEnd
	}
	return cand.EndByte()
}
