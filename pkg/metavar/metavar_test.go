package metavar_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/structgrep/pkg/metavar"
)

// fakeNode is a minimal metavar.Node for env tests; equality is plain text
// comparison.
type fakeNode string

func (f fakeNode) Text() string                  { return string(f) }
func (f fakeNode) Equal(o metavar.Node) bool     { return string(f) == o.Text() }

func TestInsertSingle_NonLinearEquality(t *testing.T) {
	env := metavar.NewEnv()
	require.True(t, env.InsertSingle("A", fakeNode("test")))
	require.True(t, env.InsertSingle("A", fakeNode("test")))
	require.False(t, env.InsertSingle("A", fakeNode("other")))

	got, ok := env.GetSingle("A")
	require.True(t, ok)
	require.Equal(t, "test", got.Text())
}

func TestClone_IsolatesWrites(t *testing.T) {
	env := metavar.NewEnv()
	require.True(t, env.InsertSingle("A", fakeNode("a")))

	clone := env.Clone()
	require.True(t, clone.InsertSingle("B", fakeNode("b")))
	clone.InsertMulti("M", []metavar.Node{fakeNode("x")})
	clone.AddLabel("secondary", fakeNode("y"))

	_, ok := env.GetSingle("B")
	require.False(t, ok)
	_, ok = env.GetMulti("M")
	require.False(t, ok)
	require.Empty(t, env.GetLabels("secondary"))

	got, ok := clone.GetSingle("A")
	require.True(t, ok)
	require.Equal(t, "a", got.Text())
}

func TestResolve_LookupOrder(t *testing.T) {
	env := metavar.NewEnv()
	require.True(t, env.InsertSingle("S", fakeNode("single")))
	env.InsertMulti("M", []metavar.Node{fakeNode("a"), fakeNode("b")})
	env.InsertTransformed("T", []byte("derived"))

	got, ok := env.Resolve("S")
	require.True(t, ok)
	require.Equal(t, "single", got)

	got, ok = env.Resolve("M")
	require.True(t, ok)
	require.Equal(t, "ab", got)

	got, ok = env.Resolve("T")
	require.True(t, ok)
	require.Equal(t, "derived", got)

	_, ok = env.Resolve("missing")
	require.False(t, ok)
}
