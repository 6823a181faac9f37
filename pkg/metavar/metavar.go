// Package metavar implements metavariable descriptors and the per-match
// binding environment (MetaVarEnv) that the matcher writes into and the
// transform/rewrite pipelines read from.
package metavar

import "fmt"

// Kind distinguishes the four metavariable shapes a pattern can contain.
type Kind int

const (
	// Single captures exactly one node: $A.
	Single Kind = iota
	// Multi captures zero or more sibling nodes: $$$A.
	Multi
	// AnonymousSingle captures one node without binding a name: $_.
	AnonymousSingle
	// AnonymousMulti captures a sibling run without binding a name: $$$.
	AnonymousMulti
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Multi:
		return "multi"
	case AnonymousSingle:
		return "anonymous-single"
	case AnonymousMulti:
		return "anonymous-multi"
	default:
		return "unknown"
	}
}

// MetaVar is a parsed metavariable token, produced by a Language's
// ExtractMetaVar.
type MetaVar struct {
	Kind Kind
	Name string // empty for AnonymousSingle / AnonymousMulti
}

// Named reports whether the metavariable binds a name visible to the env.
func (m MetaVar) Named() bool {
	return m.Kind == Single || m.Kind == Multi
}

// Node is the minimal surface the matcher's bound node needs to expose to
// the environment. pkg/doc.Node satisfies it; kept as an interface here so
// metavar has no dependency on the tree-sitter-backed doc package.
type Node interface {
	// Text returns the exact source bytes the node covers.
	Text() string
	// Equal reports structural equality: same kind, and either identical
	// terminal text or recursively-equal named children in the same order.
	Equal(other Node) bool
}

// Env is a per-match metavariable binding store; build one with NewEnv. The
// zero value supports lookups and Clone only: its maps are nil, so inserting
// into it panics.
// Env is intentionally NOT copy-on-write itself; pkg/matcher wraps Env in a
// COW handle (see pkg/matcher.EnvHandle) so failed branches never mutate a
// parent scope's bindings.
type Env struct {
	single      map[string]Node
	multi       map[string][]Node
	transformed map[string][]byte
	labels      map[string][]Node
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{
		single:      make(map[string]Node),
		multi:       make(map[string][]Node),
		transformed: make(map[string][]byte),
		labels:      make(map[string][]Node),
	}
}

// Clone performs a shallow copy: the maps are new, the Node/[]byte values
// inside are shared (Nodes are cheap handles; transformed bytes are
// immutable once produced). This is the unit of work a COW handle performs
// on first write.
func (e *Env) Clone() *Env {
	n := NewEnv()
	for k, v := range e.single {
		n.single[k] = v
	}
	for k, v := range e.multi {
		cp := make([]Node, len(v))
		copy(cp, v)
		n.multi[k] = cp
	}
	for k, v := range e.transformed {
		n.transformed[k] = v
	}
	for k, v := range e.labels {
		cp := make([]Node, len(v))
		copy(cp, v)
		n.labels[k] = cp
	}
	return n
}

// InsertSingle binds name to node. If name is already bound, the new node
// must be structurally equal to the existing one (enforces non-linear `$A
// ... $A` patterns); otherwise the insert fails and the env is unchanged.
func (e *Env) InsertSingle(name string, node Node) bool {
	if name == "" {
		return true
	}
	if existing, ok := e.single[name]; ok {
		return existing.Equal(node)
	}
	e.single[name] = node
	return true
}

// InsertMulti binds name to a (possibly empty) ordered list of nodes. Unlike
// single captures, repeated multi-capture names are not currently checked
// for equality; the matcher never produces more than one multi-capture per
// name within a single children-matching pass.
func (e *Env) InsertMulti(name string, nodes []Node) {
	if name == "" {
		return
	}
	e.multi[name] = nodes
}

// InsertTransformed stores the computed bytes for a transform's new_name.
func (e *Env) InsertTransformed(name string, value []byte) {
	e.transformed[name] = value
}

// AddLabel appends node to the named side-channel used to surface secondary
// highlights from relational sub-rule matches.
func (e *Env) AddLabel(name string, node Node) {
	e.labels[name] = append(e.labels[name], node)
}

// GetSingle looks up a single capture.
func (e *Env) GetSingle(name string) (Node, bool) {
	n, ok := e.single[name]
	return n, ok
}

// GetMulti looks up a multi-capture.
func (e *Env) GetMulti(name string) ([]Node, bool) {
	n, ok := e.multi[name]
	return n, ok
}

// GetTransformed looks up a computed transform value.
func (e *Env) GetTransformed(name string) ([]byte, bool) {
	n, ok := e.transformed[name]
	return n, ok
}

// GetLabels returns the secondary-highlight nodes recorded under name.
func (e *Env) GetLabels(name string) []Node {
	return e.labels[name]
}

// Resolve looks up name across single, multi (joined by concatenating each
// node's text), and transformed in that order, returning the text a fixer
// slot or transform `source: $V` reference should use.
func (e *Env) Resolve(name string) (string, bool) {
	if n, ok := e.single[name]; ok {
		return n.Text(), true
	}
	if nodes, ok := e.multi[name]; ok {
		s := ""
		for _, n := range nodes {
			s += n.Text()
		}
		return s, true
	}
	if b, ok := e.transformed[name]; ok {
		return string(b), true
	}
	return "", false
}

// SingleNames returns every bound single-capture name.
func (e *Env) SingleNames() []string {
	names := make([]string, 0, len(e.single))
	for k := range e.single {
		names = append(names, k)
	}
	return names
}

// MultiNames returns every bound multi-capture name.
func (e *Env) MultiNames() []string {
	names := make([]string, 0, len(e.multi))
	for k := range e.multi {
		names = append(names, k)
	}
	return names
}

// TransformedNames returns every computed transform key.
func (e *Env) TransformedNames() []string {
	names := make([]string, 0, len(e.transformed))
	for k := range e.transformed {
		names = append(names, k)
	}
	return names
}

// ErrUndefinedMetaVar is returned by callers (transform/fixer resolution)
// when a referenced metavariable is not bound in the environment.
type ErrUndefinedMetaVar struct {
	Name    string
	Section string
}

func (e *ErrUndefinedMetaVar) Error() string {
	return fmt.Sprintf("metavar: undefined $%s referenced in %s", e.Name, e.Section)
}
