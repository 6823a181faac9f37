package rule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/pattern"
	"github.com/oxhq/structgrep/pkg/rule"
)

func mustCompile(t *testing.T, ctx, selector string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  ctx,
		Selector: selector,
	})
	require.NoError(t, err)
	return p
}

func mustParse(t *testing.T, source string) doc.Node {
	t.Helper()
	d, err := doc.New(context.Background(), []byte(source), golang.New())
	require.NoError(t, err)
	return d.Root()
}

func findKind(n doc.Node, kind string) (doc.Node, bool) {
	var found doc.Node
	ok := false
	doc.Walk(n, doc.PreOrder, func(cand doc.Node) bool {
		if cand.Kind() == kind {
			found = cand
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// S4: Inside restricts a match by ancestry.
func TestInsideRule_Match(t *testing.T) {
	funcPattern := mustCompile(t, "package p\nfunc foo() { $$$ }", "function_declaration")

	inside := &rule.InsideRule{Relation: rule.Relation{
		Rule:   &rule.PatternRule{Pattern: funcPattern},
		StopBy: rule.StopBy{Kind: rule.StopEnd},
	}}

	root := mustParse(t, "package p\nfunc foo() { bar() }\nfunc baz() { bar() }")
	calls := 0
	doc.Walk(root, doc.PreOrder, func(n doc.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		calls++
		env := matcher.NewEnvHandle(nil)
		if calls == 1 {
			require.True(t, inside.Match(n, env)) // enclosing func is named foo
		} else {
			require.False(t, inside.Match(n, env)) // enclosing func is named baz
		}
		return true
	})
	require.Equal(t, 2, calls)
}

// HasRule with StopNeighbor only checks direct children; an argument nested
// one call deeper is out of reach.
func TestHasRule_StopNeighbor(t *testing.T) {
	identPattern := mustCompile(t, "package p\nvar target int", "identifier")

	has := &rule.HasRule{Relation: rule.Relation{
		Rule:   &rule.PatternRule{Pattern: identPattern},
		StopBy: rule.StopBy{Kind: rule.StopNeighbor},
	}}

	root := mustParse(t, "package p\nfunc _() { foo(target) }\nfunc _() { foo(bar(target)) }")
	var args []doc.Node
	doc.Walk(root, doc.PreOrder, func(n doc.Node) bool {
		if n.Kind() == "argument_list" {
			args = append(args, n)
		}
		return true
	})
	require.Len(t, args, 3)

	env := matcher.NewEnvHandle(nil)
	require.True(t, has.Match(args[0], env))  // (target): direct child
	require.False(t, has.Match(args[1], env)) // (bar(target)): target is a grandchild
	require.True(t, has.Match(args[2], env))  // inner (target): direct child
}

// HasRule with StopEnd reaches arbitrarily deep descendants.
func TestHasRule_StopEnd(t *testing.T) {
	identPattern := mustCompile(t, "package p\nvar target int", "identifier")

	has := &rule.HasRule{Relation: rule.Relation{
		Rule:   &rule.PatternRule{Pattern: identPattern},
		StopBy: rule.StopBy{Kind: rule.StopEnd},
	}}

	root := mustParse(t, "package p\nfunc _() { foo(bar(target)) }")
	fn, ok := findKind(root, "function_declaration")
	require.True(t, ok)

	env := matcher.NewEnvHandle(nil)
	require.True(t, has.Match(fn, env))
	require.NotEmpty(t, env.Env().GetLabels("secondary"))
}

func TestAllRule_RequiresEveryInner(t *testing.T) {
	always := &alwaysRule{}
	never := &neverRule{}

	all := &rule.AllRule{Rules: []rule.Rule{always, always}}
	env := matcher.NewEnvHandle(nil)
	require.True(t, all.Match(doc.Node{}, env))

	allFail := &rule.AllRule{Rules: []rule.Rule{always, never}}
	require.False(t, allFail.Match(doc.Node{}, env))
}

func TestAnyRule_MatchesFirstWinner(t *testing.T) {
	always := &alwaysRule{}
	never := &neverRule{}
	any := &rule.AnyRule{Rules: []rule.Rule{never, always}}
	env := matcher.NewEnvHandle(nil)
	require.True(t, any.Match(doc.Node{}, env))
}

func TestHasPositiveLeaf(t *testing.T) {
	always := &alwaysRule{}
	require.True(t, rule.HasPositiveLeaf(always))
	require.False(t, rule.HasPositiveLeaf(&rule.NotRule{Inner: always}))
	require.True(t, rule.HasPositiveLeaf(&rule.AnyRule{Rules: []rule.Rule{&rule.NotRule{Inner: always}, always}}))
	require.False(t, rule.HasPositiveLeaf(&rule.AllRule{Rules: []rule.Rule{&rule.NotRule{Inner: always}}}))
}

func TestRegistry_DuplicateAndCyclic(t *testing.T) {
	reg := rule.NewRegistry()
	require.NoError(t, reg.Insert("a", &alwaysRule{}))
	require.Error(t, reg.Insert("a", &alwaysRule{}))

	// b references a (fine), then c references c (self-cycle).
	require.NoError(t, reg.Insert("b", &rule.ReferentRule{ID: "a", Local: reg}))

	selfRef := &rule.ReferentRule{ID: "c", Local: reg}
	err := reg.Insert("c", selfRef)
	require.Error(t, err)
	var cyclic *rule.CyclicRuleError
	require.ErrorAs(t, err, &cyclic)
}

func TestRegistry_RegisterBatchTopologicalOrder(t *testing.T) {
	reg := rule.NewRegistry()
	defs := map[string]rule.Rule{
		"leaf": &alwaysRule{},
		"mid":  &rule.ReferentRule{ID: "leaf", Local: reg},
		"top":  &rule.ReferentRule{ID: "mid", Local: reg},
	}
	require.NoError(t, reg.RegisterBatch(defs))

	got, ok := reg.Get("top")
	require.True(t, ok)
	env := matcher.NewEnvHandle(nil)
	require.True(t, got.Match(doc.Node{}, env))
}

func TestCheckResolvable(t *testing.T) {
	local := rule.NewRegistry()
	global := rule.NewRegistry()
	require.NoError(t, global.Insert("shared", &alwaysRule{}))
	require.NoError(t, local.Insert("mine", &rule.ReferentRule{ID: "shared", Local: local, Global: global}))

	ok := &rule.AllRule{Rules: []rule.Rule{
		&rule.ReferentRule{ID: "mine", Local: local, Global: global},
	}}
	require.NoError(t, rule.CheckResolvable(ok, local, global))

	dangling := &rule.ReferentRule{ID: "ghost", Local: local, Global: global}
	err := rule.CheckResolvable(dangling, local, global)
	var undefined *rule.UndefinedUtilError
	require.ErrorAs(t, err, &undefined)
	require.Equal(t, "ghost", undefined.ID)
}

func TestRegistry_RegisterBatchDetectsCycle(t *testing.T) {
	reg := rule.NewRegistry()
	defs := map[string]rule.Rule{
		"a": &rule.ReferentRule{ID: "b", Local: reg},
		"b": &rule.ReferentRule{ID: "a", Local: reg},
	}
	err := reg.RegisterBatch(defs)
	require.Error(t, err)
}

type alwaysRule struct{}

func (alwaysRule) Match(doc.Node, *matcher.EnvHandle) bool { return true }
func (alwaysRule) PotentialKinds() map[uint16]bool         { return nil }
func (alwaysRule) References() []string                    { return nil }

type neverRule struct{}

func (neverRule) Match(doc.Node, *matcher.EnvHandle) bool { return false }
func (neverRule) PotentialKinds() map[uint16]bool         { return nil }
func (neverRule) References() []string                    { return nil }
