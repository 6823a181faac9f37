package transform_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/pkg/doc"
	"github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/matcher"
	"github.com/oxhq/structgrep/pkg/metavar"
	"github.com/oxhq/structgrep/pkg/pattern"
	"github.com/oxhq/structgrep/pkg/rule"
	"github.com/oxhq/structgrep/pkg/transform"
)

func captureEnv(t *testing.T, src, ctxSrc, selector string) *metavar.Env {
	t.Helper()
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  ctxSrc,
		Selector: selector,
	})
	require.NoError(t, err)

	d, err := doc.New(context.Background(), []byte(src), golang.New())
	require.NoError(t, err)

	var target doc.Node
	found := false
	doc.Walk(d.Root(), doc.PreOrder, func(n doc.Node) bool {
		if n.Kind() == selector {
			target = n
			found = true
			return false
		}
		return true
	})
	require.True(t, found)

	m, ok := matcher.MatchNode(p, target)
	require.True(t, ok)
	return m.Env
}

func TestSubstring(t *testing.T) {
	env := captureEnv(t, "package p\nconst a = 123", "package p\nconst a = $A", "const_declaration")
	start, end := 1, -1
	s := &transform.Substring{Source: "A", StartChar: &start, EndChar: &end}
	out, ok := s.Compute(&transform.Ctx{Env: env})
	require.True(t, ok)
	require.Equal(t, "2", out)
}

func TestReplace(t *testing.T) {
	env := captureEnv(t, "package p\nconst a = 123", "package p\nconst a = $A", "const_declaration")
	r := &transform.Replace{Source: "A", Replace: regexp.MustCompile(`\d`), By: "b"}
	out, ok := r.Compute(&transform.Ctx{Env: env})
	require.True(t, ok)
	require.Equal(t, "bbb", out)
}

func TestConvert_SeparatedByDisablesCaseSplit(t *testing.T) {
	env := captureEnv(t, "package p\nconst a = camelCase_Not", "package p\nconst a = $A", "const_declaration")
	c := &transform.Convert{Source: "A", ToCase: transform.SnakeCase, SeparatedBy: []transform.Separator{transform.SepUnderscore}}
	out, ok := c.Compute(&transform.Ctx{Env: env})
	require.True(t, ok)
	require.Equal(t, "camelcase_not", out)
}

func TestConvert_UpperCase(t *testing.T) {
	env := captureEnv(t, "package p\nconst a = real_quiet_now", "package p\nconst a = $A", "const_declaration")
	c := &transform.Convert{Source: "A", ToCase: transform.UpperCase}
	out, ok := c.Compute(&transform.Ctx{Env: env})
	require.True(t, ok)
	require.Equal(t, "REAL_QUIET_NOW", out)
}

func TestRewrite_AppliesRewritersToCapturedRun(t *testing.T) {
	env := captureEnv(t,
		"package p\nvar x = sum(a(1), b(2))",
		"package p\nvar x = sum($$$LIST)",
		"call_expression")

	inner, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nvar x = $N($V)",
		Selector: "call_expression",
	})
	require.NoError(t, err)

	rewriters := map[string]*transform.Rewriter{
		"each": {
			ID:          "each",
			Rule:        &rule.PatternRule{Pattern: inner},
			Fix:         "apply($N, $V)",
			MetaVarChar: '$',
		},
	}

	rw := &transform.Rewrite{Source: "LIST", Rewriters: []string{"each"}}
	out, ok := rw.Compute(&transform.Ctx{Env: env, Rewriters: rewriters})
	require.True(t, ok)
	require.Equal(t, "apply(a, 1), apply(b, 2)", out)
}

func TestRewrite_JoinBy(t *testing.T) {
	env := captureEnv(t,
		"package p\nvar x = sum(a(1), b(2))",
		"package p\nvar x = sum($$$LIST)",
		"call_expression")

	inner, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nvar x = $N($V)",
		Selector: "call_expression",
	})
	require.NoError(t, err)

	rewriters := map[string]*transform.Rewriter{
		"each": {
			ID:          "each",
			Rule:        &rule.PatternRule{Pattern: inner},
			Fix:         "$V",
			MetaVarChar: '$',
		},
	}

	joiner := " + "
	rw := &transform.Rewrite{Source: "LIST", Rewriters: []string{"each"}, JoinBy: &joiner}
	out, ok := rw.Compute(&transform.Ctx{Env: env, Rewriters: rewriters})
	require.True(t, ok)
	require.Equal(t, "1 + 2", out)
}

func TestResolveOrder_DependentTransforms(t *testing.T) {
	defs := map[string]transform.Transform{
		"REP": &transform.Replace{Source: "A", Replace: regexp.MustCompile(`\d`), By: "b"},
		"SUB": &transform.Substring{Source: "REP"},
		"UP":  &transform.Convert{Source: "SUB", ToCase: transform.UpperCase},
	}
	order, err := transform.ResolveOrder(defs)
	require.NoError(t, err)
	require.Equal(t, []string{"REP", "SUB", "UP"}, order)
}

func TestResolveOrder_DetectsCycle(t *testing.T) {
	defs := map[string]transform.Transform{
		"A": &transform.Substring{Source: "B"},
		"B": &transform.Substring{Source: "A"},
	}
	_, err := transform.ResolveOrder(defs)
	require.Error(t, err)
}

func TestApply_ChainedTransforms(t *testing.T) {
	env := captureEnv(t, "package p\nconst a = 123", "package p\nconst a = $A", "const_declaration")
	defs := map[string]transform.Transform{
		"REP": &transform.Replace{Source: "A", Replace: regexp.MustCompile(`\d`), By: "b"},
		"SUB": &transform.Substring{Source: "REP"},
	}
	ctx := &transform.Ctx{Env: env}
	require.NoError(t, transform.Apply(defs, ctx))

	rep, ok := env.GetTransformed("REP")
	require.True(t, ok)
	require.Equal(t, "bbb", string(rep))

	sub, ok := env.GetTransformed("SUB")
	require.True(t, ok)
	require.Equal(t, "bbb", string(sub))
}
