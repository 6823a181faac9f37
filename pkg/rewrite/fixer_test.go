package rewrite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/pattern"
	"github.com/oxhq/structgrep/pkg/rewrite"
)

func TestGenerate_TextualTemplate(t *testing.T) {
	f := rewrite.CompileFixer("plain text, no vars", '$')
	require.Equal(t, "plain text, no vars", string(rewrite.Generate(f, nil)))
}

func TestGenerate_SubstitutesSingleCapture(t *testing.T) {
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nconst a = $VALUE",
		Selector: "const_declaration",
	})
	require.NoError(t, err)

	d, err := doc.New(context.Background(), []byte("package p\nconst a = 5 + 3"), golang.New())
	require.NoError(t, err)

	var decl doc.Node
	doc.Walk(d.Root(), doc.PreOrder, func(n doc.Node) bool {
		if n.Kind() == "const_declaration" {
			decl = n
			return false
		}
		return true
	})

	m, ok := matcher.MatchNode(p, decl)
	require.True(t, ok)

	f := rewrite.CompileFixer("result := $VALUE", '$')
	out := rewrite.Generate(f, m.Env)
	require.Equal(t, "result := 5 + 3", string(out))
}

// A multi-line capture keeps its relative indentation and the whole
// replacement is re-indented to the column the match starts at.
func TestGenerateAtInsertionPoint_PreservesRelativeIndent(t *testing.T) {
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nfunc _() { a($B) }",
		Selector: "call_expression",
	})
	require.NoError(t, err)

	source := "package p\n\nfunc _() {\n  a(\n    1 +\n      2 +\n      3)\n}\n"
	d, err := doc.New(context.Background(), []byte(source), golang.New())
	require.NoError(t, err)

	var call doc.Node
	doc.Walk(d.Root(), doc.PreOrder, func(n doc.Node) bool {
		if n.Kind() == "call_expression" {
			call = n
			return false
		}
		return true
	})

	m, ok := matcher.MatchNode(p, call)
	require.True(t, ok)

	out := rewrite.GenerateAtInsertionPoint("c(\n  $B\n)", '$', m.Env, call)
	require.Equal(t, "c(\n    1 +\n      2 +\n      3\n  )", string(out))
}

// A fixer template with no metavariables is emitted verbatim.
func TestGenerateAtInsertionPoint_PlainTemplate(t *testing.T) {
	d, err := doc.New(context.Background(), []byte("package p\nvar x = 1\n"), golang.New())
	require.NoError(t, err)
	var spec doc.Node
	doc.Walk(d.Root(), doc.PreOrder, func(n doc.Node) bool {
		if n.Kind() == "var_declaration" {
			spec = n
			return false
		}
		return true
	})
	out := rewrite.GenerateAtInsertionPoint("var y = 2", '$', nil, spec)
	require.Equal(t, "var y = 2", string(out))
}
