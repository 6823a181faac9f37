package matcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/metavar"
	"github.com/oxhq/structgrep/pkg/pattern"
)

func compile(t *testing.T, src pattern.Source) *pattern.Pattern {
	t.Helper()
	p, err := pattern.Compile(context.Background(), golang.New(), src)
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, source string) doc.Node {
	t.Helper()
	d, err := doc.New(context.Background(), []byte(source), golang.New())
	require.NoError(t, err)
	return d.Root()
}

// S1: pattern with a metavariable binds the captured source text.
func TestMatchNode_MetaVarCapture(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nconst a = $VALUE",
		Selector: "const_declaration",
	})
	root := parse(t, "package p\nconst a = 5 + 3")

	decl, ok := findKind(root, "const_declaration")
	require.True(t, ok)

	m, ok := matcher.MatchNode(p, decl)
	require.True(t, ok)

	bound, ok := m.Env.GetSingle("VALUE")
	require.True(t, ok)
	require.Equal(t, "5 + 3", bound.Text())
}

// S2: an ellipsis captures the sibling run preceding a fixed trailing arg.
func TestMatchNode_Ellipsis(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nfunc _() { foo($$$A, c) }",
		Selector: "call_expression",
	})
	root := parse(t, "package p\nfunc _() { foo(a, b, c) }")

	call, ok := findKind(root, "call_expression")
	require.True(t, ok)

	m, ok := matcher.MatchNode(p, call)
	require.True(t, ok)

	bound, ok := m.Env.GetMulti("A")
	require.True(t, ok)
	require.Len(t, bound, 2)
	require.Equal(t, "a", bound[0].Text())
	require.Equal(t, "b", bound[1].Text())
}

// S3: non-linear metavariables require structurally identical occurrences.
func TestMatchNode_NonLinear(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nfunc _() { $A($A) }",
		Selector: "call_expression",
	})

	matches := func(src string) bool {
		root := parse(t, "package p\nfunc _() { "+src+" }")
		call, ok := findKind(root, "call_expression")
		require.True(t, ok)
		_, ok = matcher.MatchNode(p, call)
		return ok
	}

	require.True(t, matches("test(test)"))
	require.False(t, matches("test(123)"))
	require.False(t, matches("foo(bar)"))
}

// S2 variant: successive ellipses. The first consumes exactly one candidate;
// the rest belongs to the trailing capture.
func TestMatchNode_SuccessiveEllipses(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nfunc _() { foo($$$, $$$A) }",
		Selector: "call_expression",
	})
	root := parse(t, "package p\nfunc _() { foo(a, b, c) }")

	call, ok := findKind(root, "call_expression")
	require.True(t, ok)

	m, ok := matcher.MatchNode(p, call)
	require.True(t, ok)

	bound, ok := m.Env.GetMulti("A")
	require.True(t, ok)
	require.Len(t, bound, 2)
	require.Equal(t, "b", bound[0].Text())
	require.Equal(t, "c", bound[1].Text())
}

// A trailing ellipsis may capture an empty run.
func TestMatchNode_EmptyEllipsis(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nfunc _() { foo($$$A) }",
		Selector: "call_expression",
	})
	root := parse(t, "package p\nfunc _() { foo() }")

	call, ok := findKind(root, "call_expression")
	require.True(t, ok)

	m, ok := matcher.MatchNode(p, call)
	require.True(t, ok)

	bound, ok := m.Env.GetMulti("A")
	require.True(t, ok)
	require.Empty(t, bound)
}

// A failed match never leaks bindings into the caller's environment.
func TestMatchNodeWithEnv_FailureLeavesEnvClean(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nfunc _() { $A($A) }",
		Selector: "call_expression",
	})
	root := parse(t, "package p\nfunc _() { test(123) }")

	call, ok := findKind(root, "call_expression")
	require.True(t, ok)

	base := metavar.NewEnv()
	require.False(t, matcher.MatchNodeWithEnv(p, call, matcher.NewEnvHandle(base)))
	require.Empty(t, base.SingleNames())
}

func TestMatchEnd(t *testing.T) {
	p := compile(t, pattern.Source{
		Context:  "package p\nfunc _() { foo($$$A) }",
		Selector: "call_expression",
	})
	root := parse(t, "package p\nfunc _() { foo(a, b) }")

	call, ok := findKind(root, "call_expression")
	require.True(t, ok)

	end, ok := matcher.MatchEnd(p, call)
	require.True(t, ok)
	require.Equal(t, call.EndByte(), end)
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
