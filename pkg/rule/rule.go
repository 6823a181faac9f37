// Package rule implements the rule algebra: atomic, relational, and
// composite rule composition, plus referent (named-rule) resolution with
// cycle detection and topologically ordered registration of utility rules.
package rule

import (
	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/matcher"
)

// Rule is a node predicate evaluated against a shared, copy-on-write
// metavariable environment.
type Rule interface {
	// Match reports whether node satisfies the rule, writing any captures
	// into env. A false result must not leave visible bindings in env.
	Match(node doc.Node, env *matcher.EnvHandle) bool

	// PotentialKinds returns the set of kind ids the rule can ever match at
	// its root, or nil if unconstrained.
	PotentialKinds() map[uint16]bool

	// References lists the rule ids this rule directly depends on (via
	// Matches), used for cycle detection and topological registration.
	References() []string
}

// MissPositiveMatcherError is returned when a complete rule tree has no
// positive (non-Not) leaf anywhere in it.
type MissPositiveMatcherError struct{}

func (MissPositiveMatcherError) Error() string {
	return "rule: no positive matcher found in rule tree"
}

// HasPositiveLeaf reports whether r (or any of its descendants) is a leaf
// rule that is not wrapped in Not.
func HasPositiveLeaf(r Rule) bool {
	switch v := r.(type) {
	case *NotRule:
		return false
	case *AllRule:
		for _, inner := range v.Rules {
			if HasPositiveLeaf(inner) {
				return true
			}
		}
		return false
	case *AnyRule:
		for _, inner := range v.Rules {
			if HasPositiveLeaf(inner) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// AllRule requires every inner rule to match; all bind into the same env.
type AllRule struct{ Rules []Rule }

func (r *AllRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	fork := env.Fork()
	for _, inner := range r.Rules {
		if !inner.Match(n, fork) {
			return false
		}
	}
	env.Promote(fork)
	return true
}

func (r *AllRule) PotentialKinds() map[uint16]bool {
	var result map[uint16]bool
	for _, inner := range r.Rules {
		k := inner.PotentialKinds()
		if k == nil {
			continue
		}
		if result == nil {
			result = make(map[uint16]bool, len(k))
			for id := range k {
				result[id] = true
			}
			continue
		}
		for id := range result {
			if !k[id] {
				delete(result, id)
			}
		}
	}
	return result
}

func (r *AllRule) References() []string {
	var refs []string
	for _, inner := range r.Rules {
		refs = append(refs, inner.References()...)
	}
	return refs
}

// AnyRule matches if any inner rule matches; the env is the first winner's.
type AnyRule struct{ Rules []Rule }

func (r *AnyRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	for _, inner := range r.Rules {
		fork := env.Fork()
		if inner.Match(n, fork) {
			env.Promote(fork)
			return true
		}
	}
	return false
}

func (r *AnyRule) PotentialKinds() map[uint16]bool {
	result := make(map[uint16]bool)
	for _, inner := range r.Rules {
		k := inner.PotentialKinds()
		if k == nil {
			return nil // any unconstrained branch makes the union unconstrained
		}
		for id := range k {
			result[id] = true
		}
	}
	return result
}

func (r *AnyRule) References() []string {
	var refs []string
	for _, inner := range r.Rules {
		refs = append(refs, inner.References()...)
	}
	return refs
}

// NotRule matches when its inner rule does not; it contributes no bindings.
type NotRule struct{ Inner Rule }

func (r *NotRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	fork := env.Fork()
	return !r.Inner.Match(n, fork)
}

func (r *NotRule) PotentialKinds() map[uint16]bool { return nil }

func (r *NotRule) References() []string { return r.Inner.References() }

// ReferentRule looks up id in a registry at evaluation time, decoupling the
// rule's lifetime from the registration holding its target (the Go
// equivalent of the source's reference-counted weak handle).
type ReferentRule struct {
	ID    string
	Local *Registry
	Global *Registry
}

func (r *ReferentRule) resolve() (Rule, bool) {
	if r.Local != nil {
		if rl, ok := r.Local.Get(r.ID); ok {
			return rl, true
		}
	}
	if r.Global != nil {
		if rl, ok := r.Global.Get(r.ID); ok {
			return rl, true
		}
	}
	return nil, false
}

func (r *ReferentRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	target, ok := r.resolve()
	if !ok {
		return false
	}
	return target.Match(n, env)
}

func (r *ReferentRule) PotentialKinds() map[uint16]bool {
	target, ok := r.resolve()
	if !ok {
		return nil
	}
	return target.PotentialKinds()
}

func (r *ReferentRule) References() []string { return []string{r.ID} }
