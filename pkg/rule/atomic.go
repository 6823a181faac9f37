package rule

import (
	"regexp"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/pattern"
)

// PatternRule wraps a compiled pattern as an atomic rule.
type PatternRule struct{ Pattern *pattern.Pattern }

func (r *PatternRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	return matcher.MatchNodeWithEnv(r.Pattern, n, env)
}

func (r *PatternRule) PotentialKinds() map[uint16]bool { return r.Pattern.PotentialKinds() }
func (r *PatternRule) References() []string            { return nil }

// KindRule matches nodes whose kind id is one of a fixed set (as resolved
// by a Language's KindToID for a kind name).
type KindRule struct {
	Name  string
	Kinds map[uint16]bool
}

func (r *KindRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	return r.Kinds[n.KindID()]
}

func (r *KindRule) PotentialKinds() map[uint16]bool { return r.Kinds }
func (r *KindRule) References() []string            { return nil }

// RegexRule matches nodes whose text matches a compiled regular expression.
// It imposes no kind constraint: a regex may match terminals of any kind.
type RegexRule struct{ Re *regexp.Regexp }

func (r *RegexRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	return r.Re.MatchString(n.Text())
}

func (r *RegexRule) PotentialKinds() map[uint16]bool { return nil }
func (r *RegexRule) References() []string            { return nil }

// NthChildRule matches a node by its 1-based ordinal position among
// siblings, optionally restricted to siblings that also satisfy Of.
type NthChildRule struct {
	Nth int
	Of  Rule // nil means "among all siblings"
}

func (r *NthChildRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	parent, ok := n.Parent()
	if !ok {
		return r.Nth == 1
	}
	ordinal := 0
	for _, sib := range parent.Children() {
		if r.Of != nil {
			fork := env.Fork()
			if !r.Of.Match(sib, fork) {
				continue
			}
		}
		ordinal++
		if sib.SameNode(n) {
			return ordinal == r.Nth
		}
	}
	return false
}

func (r *NthChildRule) PotentialKinds() map[uint16]bool { return nil }
func (r *NthChildRule) References() []string {
	if r.Of == nil {
		return nil
	}
	return r.Of.References()
}

// Position is a 0-based (line, column) pair, mirroring doc.Point.
type Position struct {
	Line   uint32
	Column uint32
}

// RangeRule matches a node whose range covers the requested window; a node
// strictly containing the window's boundaries counts, not only an exact
// range-for-range hit.
type RangeRule struct {
	StartLine, StartColumn uint32
	EndLine, EndColumn     uint32
}

func (r *RangeRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	start := n.StartPoint()
	end := n.EndPoint()
	afterOrAtStart := start.Row < r.StartLine || (start.Row == r.StartLine && start.Column <= r.StartColumn)
	beforeOrAtEnd := end.Row > r.EndLine || (end.Row == r.EndLine && end.Column >= r.EndColumn)
	return afterOrAtStart && beforeOrAtEnd
}

func (r *RangeRule) PotentialKinds() map[uint16]bool { return nil }
func (r *RangeRule) References() []string            { return nil }
