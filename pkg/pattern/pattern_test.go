package pattern_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/pkg/lang/golang"
	"github.com/oxhq/structgrep/pkg/lang/javascript"
	"github.com/oxhq/structgrep/pkg/pattern"
)

func TestCompile_EmptyPattern(t *testing.T) {
	_, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{Pattern: ""})
	require.Error(t, err)
	var perr *pattern.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "NoContent", perr.Kind)
}

func TestCompile_MultipleTopLevelNodes(t *testing.T) {
	_, err := pattern.Compile(context.Background(), javascript.New(), pattern.Source{Pattern: "foo(); bar()"})
	require.Error(t, err)
	var perr *pattern.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "MultipleNode", perr.Kind)
}

func TestCompile_ContextualSelector(t *testing.T) {
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nconst a = $VALUE",
		Selector: "const_declaration",
	})
	require.NoError(t, err)
	require.Equal(t, "const_declaration", p.RootKind)
}

func TestCompile_SelectorNotInContext(t *testing.T) {
	_, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nconst a = 1",
		Selector: "function_declaration",
	})
	require.Error(t, err)
	var perr *pattern.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "NoSelectorInContext", perr.Kind)
}

func TestCompile_UnknownSelectorKind(t *testing.T) {
	_, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nconst a = 1",
		Selector: "no_such_kind",
	})
	require.Error(t, err)
	var perr *pattern.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "InvalidKind", perr.Kind)
}

func TestFixedString_LongestLiteral(t *testing.T) {
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nfunc _() { lengthyFunctionName($A) }",
		Selector: "call_expression",
	})
	require.NoError(t, err)
	require.Equal(t, "lengthyFunctionName", p.FixedString())
}

func TestPotentialKinds(t *testing.T) {
	p, err := pattern.Compile(context.Background(), golang.New(), pattern.Source{
		Context:  "package p\nfunc _() { foo($A) }",
		Selector: "call_expression",
	})
	require.NoError(t, err)
	kinds := p.PotentialKinds()
	require.NotNil(t, kinds)
	require.Len(t, kinds, 1)

	// A bare metavariable pattern constrains nothing.
	bare, err := pattern.Compile(context.Background(), javascript.New(), pattern.Source{Pattern: "$A"})
	require.NoError(t, err)
	require.Nil(t, bare.PotentialKinds())
}
