// Package transform implements the substring/replace/convert/rewrite
// computed-metavariable pipeline: named transforms that derive new bound
// text from an existing capture, resolved in dependency order and folded
// back into the match environment as transformed values.
package transform

import (
	"fmt"
	"regexp"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/metavar"
	"github.com/oxhq/structgrep/pkg/rewrite"
	"github.com/oxhq/structgrep/pkg/rule"
)

// Ctx bundles the state a transform's Compute needs: the live match
// environment (read and written), the rewriter rules a Rewrite transform
// may invoke by name, and the enclosing rule's environment a nested
// rewriter inherits from (but never writes back to).
type Ctx struct {
	Env          *metavar.Env
	Rewriters    map[string]*Rewriter
	EnclosingEnv *metavar.Env
	MetaVarChar  rune
}

func textFromEnv(env *metavar.Env, varName string) (string, bool) {
	return env.Resolve(varName)
}

// Transform is a single named computed-value operation.
type Transform interface {
	// Compute derives the transform's text, or false if its source
	// metavariable is unbound.
	Compute(ctx *Ctx) (string, bool)
	// UsedVar names the metavariable (or prior transform key) this
	// transform reads from.
	UsedVar() string
	// UsedRewriters lists rewriter ids a Rewrite transform references; nil
	// for every other kind.
	UsedRewriters() []string
}

// Substring extracts a character range from its source's text, supporting
// Python-style negative indices counted from the end.
type Substring struct {
	Source   string
	StartChar *int
	EndChar   *int
}

func resolveChar(opt *int, dft, length int) int {
	c := dft
	if opt != nil {
		c = *opt
	}
	switch {
	case c >= length:
		return length
	case c >= 0:
		return c
	case length+c < 0:
		return 0
	default:
		return length + c
	}
}

func (s *Substring) Compute(ctx *Ctx) (string, bool) {
	text, ok := textFromEnv(ctx.Env, s.Source)
	if !ok {
		return "", false
	}
	chars := []rune(text)
	length := len(chars)
	start := resolveChar(s.StartChar, 0, length)
	end := resolveChar(s.EndChar, length, length)
	if start > end || start >= length || end > length {
		return "", true
	}
	return string(chars[start:end]), true
}

func (s *Substring) UsedVar() string          { return s.Source }
func (s *Substring) UsedRewriters() []string { return nil }

// Replace substitutes every regex match in its source's text with by.
type Replace struct {
	Source  string
	Replace *regexp.Regexp
	By      string
}

func (r *Replace) Compute(ctx *Ctx) (string, bool) {
	text, ok := textFromEnv(ctx.Env, r.Source)
	if !ok {
		return "", false
	}
	return r.Replace.ReplaceAllString(text, r.By), true
}

func (r *Replace) UsedVar() string          { return r.Source }
func (r *Replace) UsedRewriters() []string { return nil }

// Convert reassembles its source's text in a target case format.
type Convert struct {
	Source      string
	ToCase      Case
	SeparatedBy []Separator
}

func (c *Convert) Compute(ctx *Ctx) (string, bool) {
	text, ok := textFromEnv(ctx.Env, c.Source)
	if !ok {
		return "", false
	}
	return ApplyCase(text, c.ToCase, c.SeparatedBy), true
}

func (c *Convert) UsedVar() string          { return c.Source }
func (c *Convert) UsedRewriters() []string { return nil }

// Rewriter is a named sub-rule applied by a Rewrite transform: if Rule
// matches a descendant, Fix's template (compiled with MetaVarChar) becomes
// that descendant's replacement text.
type Rewriter struct {
	ID          string
	Rule        rule.Rule
	Fix         string
	MetaVarChar rune
}

// Rewrite applies named Rewriters to every descendant of its source
// node(s), splicing in each match's fix text (first matching rewriter per
// descendant wins; a descendant is visited pre-order and matched
// descendants are not re-entered once replaced).
type Rewrite struct {
	Source    string
	Rewriters []string
	JoinBy    *string
}

func (rw *Rewrite) UsedVar() string          { return rw.Source }
func (rw *Rewrite) UsedRewriters() []string { return rw.Rewriters }

func nodesFromEnv(env *metavar.Env, varName string) []doc.Node {
	if nodes, ok := env.GetMulti(varName); ok {
		out := make([]doc.Node, 0, len(nodes))
		for _, n := range nodes {
			if dn, ok := n.(doc.Node); ok {
				out = append(out, dn)
			}
		}
		return out
	}
	if n, ok := env.GetSingle(varName); ok {
		if dn, ok := n.(doc.Node); ok {
			return []doc.Node{dn}
		}
	}
	return nil
}

func (rw *Rewrite) Compute(ctx *Ctx) (string, bool) {
	nodes := nodesFromEnv(ctx.Env, rw.Source)
	if len(nodes) == 0 {
		return "", false
	}
	// The merge basis is the contiguous source slice covering the captured
	// run, punctuation between multi-capture nodes included.
	startByte := nodes[0].StartByte()
	endByte := nodes[len(nodes)-1].EndByte()
	text := nodes[0].Doc().Slice(startByte, endByte)

	var rules []*Rewriter
	for _, id := range rw.Rewriters {
		if rwr, ok := ctx.Rewriters[id]; ok {
			rules = append(rules, rwr)
		}
	}

	start := int(startByte)
	var edits []rewrite.Edit
	for _, n := range nodes {
		edits = append(edits, findAndMakeEdits(n, rules, ctx)...)
	}

	if rw.JoinBy != nil {
		return string(rewrite.Join(edits, []byte(*rw.JoinBy), start)), true
	}
	merged := rewrite.Merge([]byte(text), edits, start)
	return string(merged), true
}

func findAndMakeEdits(n doc.Node, rules []*Rewriter, ctx *Ctx) []rewrite.Edit {
	var edits []rewrite.Edit
	v := &doc.Visitor{Order: doc.PreOrder, Reentrant: false}
	v.Match = doc.MatcherFunc(func(cand doc.Node) bool {
		for _, rwr := range rules {
			env := metavar.NewEnv()
			if ctx.EnclosingEnv != nil {
				env = ctx.EnclosingEnv.Clone()
			}
			handle := matcher.NewEnvHandle(env)
			if rwr.Rule.Match(cand, handle) {
				text := rewrite.Generate(rewrite.CompileFixer(rwr.Fix, rwr.MetaVarChar), handle.Env())
				edits = append(edits, rewrite.Edit{
					Position:      int(cand.StartByte()),
					DeletedLength: int(cand.EndByte() - cand.StartByte()),
					InsertedText:  text,
				})
				return true
			}
		}
		return false
	})
	// Reentrant: false stops descent once a rewriter claims a node, so a
	// replaced node's own descendants are never independently rewritten too.
	v.Visit(n, func(doc.Node) bool { return true })
	return edits
}

// ResolveOrder topologically sorts a set of named transforms by their
// UsedVar dependency on other keys in the same set, so that a transform
// referencing another transform's output is computed after it. References
// outside this set are not checked here: Compute returns false for an
// unbound source, and Apply then stores an empty value under that key.
func ResolveOrder(defs map[string]Transform) ([]string, error) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(defs))
	var order []string

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case done:
			return nil
		case inProgress:
			return fmt.Errorf("transform: cyclic dependency through %q", key)
		}
		t, ok := defs[key]
		if !ok {
			return nil
		}
		state[key] = inProgress
		if dep := t.UsedVar(); dep != "" {
			if dep == key {
				return fmt.Errorf("transform: %q depends on itself", key)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[key] = done
		order = append(order, key)
		return nil
	}

	for key := range defs {
		if err := visit(key); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Apply computes every transform in defs, in dependency order, inserting
// each result into ctx.Env as a transformed value under its key.
func Apply(defs map[string]Transform, ctx *Ctx) error {
	order, err := ResolveOrder(defs)
	if err != nil {
		return err
	}
	for _, key := range order {
		text, ok := defs[key].Compute(ctx)
		if !ok {
			ctx.Env.InsertTransformed(key, nil)
			continue
		}
		ctx.Env.InsertTransformed(key, []byte(text))
	}
	return nil
}
