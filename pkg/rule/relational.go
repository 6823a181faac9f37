package rule

import (
	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/matcher"
)

// StopByKind selects how far a relational walk travels before giving up.
type StopByKind int

const (
	// StopNeighbor restricts the walk to the immediate neighbor (parent,
	// direct children, or the immediately adjacent sibling).
	StopNeighbor StopByKind = iota
	// StopEnd walks transitively to the end of the relevant axis (root,
	// leaves, or sibling list end).
	StopEnd
	// StopUntilRule walks inclusively until a node matches Rule, trying the
	// relation at that node too before stopping.
	StopUntilRule
)

// StopBy is the policy governing a relational walk's extent.
type StopBy struct {
	Kind StopByKind
	Rule Rule // only meaningful when Kind == StopUntilRule
}

// Relation is the payload every relational rule carries: an inner rule to
// satisfy, a stop-by policy, and an optional field-name restriction.
type Relation struct {
	Rule   Rule
	StopBy StopBy
	Field  string
}

func tryRelation(rel Relation, candidate doc.Node, env *matcher.EnvHandle) bool {
	fork := env.Fork()
	if rel.Rule.Match(candidate, fork) {
		env.Promote(fork)
		env.AddLabel("secondary", candidate)
		return true
	}
	return false
}

func stopsAt(rel Relation, candidate doc.Node, env *matcher.EnvHandle) bool {
	if rel.StopBy.Kind != StopUntilRule {
		return false
	}
	fork := env.Fork()
	return rel.StopBy.Rule.Match(candidate, fork)
}

// InsideRule matches when an ancestor (subject to Relation's field and
// stop-by policy) satisfies Relation.Rule.
type InsideRule struct{ Relation Relation }

// Match walks ancestors of n. Per the resolved field+stopBy interaction:
// at each ancestor visited, the field restriction is checked against the
// child the walk arrived FROM (not the ancestor itself), tracking the
// previously visited node across steps.
func (r *InsideRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	child := n
	for {
		parent, ok := child.Parent()
		if !ok {
			return false
		}

		fieldOK := true
		if r.Relation.Field != "" {
			fc, has := parent.FieldChild(r.Relation.Field)
			fieldOK = has && fc.SameNode(child)
		}

		if fieldOK && tryRelation(r.Relation, parent, env) {
			return true
		}

		switch r.Relation.StopBy.Kind {
		case StopNeighbor:
			return false
		case StopUntilRule:
			if stopsAt(r.Relation, parent, env) {
				return false
			}
		}
		child = parent
	}
}

func (r *InsideRule) PotentialKinds() map[uint16]bool { return nil }
func (r *InsideRule) References() []string {
	refs := r.Relation.Rule.References()
	if r.Relation.StopBy.Kind == StopUntilRule {
		refs = append(refs, r.Relation.StopBy.Rule.References()...)
	}
	return refs
}

// HasRule matches when a descendant (subject to Relation's stop-by policy)
// satisfies Relation.Rule. Neighbor restricts to direct children, End walks
// the full subtree, UntilRule recurses but refuses to descend past a node
// that itself matches the stop rule.
type HasRule struct{ Relation Relation }

func (r *HasRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	if r.Relation.StopBy.Kind == StopNeighbor {
		for _, c := range n.Children() {
			if tryRelation(r.Relation, c, env) {
				return true
			}
		}
		return false
	}

	found := false
	var walk func(doc.Node)
	walk = func(c doc.Node) {
		if found {
			return
		}
		if tryRelation(r.Relation, c, env) {
			found = true
			return
		}
		if stopsAt(r.Relation, c, env) {
			return
		}
		for _, cc := range c.Children() {
			walk(cc)
			if found {
				return
			}
		}
	}
	for _, c := range n.Children() {
		walk(c)
		if found {
			break
		}
	}
	return found
}

func (r *HasRule) PotentialKinds() map[uint16]bool { return nil }
func (r *HasRule) References() []string {
	refs := r.Relation.Rule.References()
	if r.Relation.StopBy.Kind == StopUntilRule {
		refs = append(refs, r.Relation.StopBy.Rule.References()...)
	}
	return refs
}

// PrecedesRule matches when a following sibling (subject to stop-by)
// satisfies Relation.Rule.
type PrecedesRule struct{ Relation Relation }

func (r *PrecedesRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	cur := n
	for {
		sib, ok := cur.NextSibling()
		if !ok {
			return false
		}
		if tryRelation(r.Relation, sib, env) {
			return true
		}
		if r.Relation.StopBy.Kind == StopNeighbor {
			return false
		}
		if stopsAt(r.Relation, sib, env) {
			return false
		}
		cur = sib
	}
}

func (r *PrecedesRule) PotentialKinds() map[uint16]bool { return nil }
func (r *PrecedesRule) References() []string {
	refs := r.Relation.Rule.References()
	if r.Relation.StopBy.Kind == StopUntilRule {
		refs = append(refs, r.Relation.StopBy.Rule.References()...)
	}
	return refs
}

// FollowsRule matches when a preceding sibling (subject to stop-by)
// satisfies Relation.Rule.
type FollowsRule struct{ Relation Relation }

func (r *FollowsRule) Match(n doc.Node, env *matcher.EnvHandle) bool {
	cur := n
	for {
		sib, ok := cur.PrevSibling()
		if !ok {
			return false
		}
		if tryRelation(r.Relation, sib, env) {
			return true
		}
		if r.Relation.StopBy.Kind == StopNeighbor {
			return false
		}
		if stopsAt(r.Relation, sib, env) {
			return false
		}
		cur = sib
	}
}

func (r *FollowsRule) PotentialKinds() map[uint16]bool { return nil }
func (r *FollowsRule) References() []string {
	refs := r.Relation.Rule.References()
	if r.Relation.StopBy.Kind == StopUntilRule {
		refs = append(refs, r.Relation.StopBy.Rule.References()...)
	}
	return refs
}
