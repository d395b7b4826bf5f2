package unionfind_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/matching/unionfind"
)

func TestUnionFind_TransitiveClosure(t *testing.T) {
	t.Parallel()

	d := unionfind.New()
	d.Union("a", "b")
	d.Union("b", "c")

	assert.True(t, d.Connected("a", "c"), "a~b and b~c must imply a~c")
	assert.Equal(t, d.Find("a"), d.Find("c"))
}

func TestUnionFind_OrderIndependent(t *testing.T) {
	t.Parallel()

	forward := unionfind.New()
	forward.Union("x", "y")
	forward.Union("y", "z")

	reverse := unionfind.New()
	reverse.Union("y", "z")
	reverse.Union("x", "y")

	assert.Equal(t, forward.Components(), reverse.Components())
}

func TestComponents_SingletonsExcluded(t *testing.T) {
	t.Parallel()

	d := unionfind.New()
	d.Add("alone")
	d.Union("a", "b")
	d.Union("b", "c")
	d.Union("p", "q")

	comps := d.Components()
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"a", "b", "c"}, comps["a"])
	assert.Equal(t, []string{"p", "q"}, comps["p"])
}

func TestUnion_SelfAndRepeatAreNoOps(t *testing.T) {
	t.Parallel()

	d := unionfind.New()
	d.Union("a", "a")
	d.Union("a", "b")
	d.Union("a", "b")

	comps := d.Components()
	require.Len(t, comps, 1)
	assert.Equal(t, []string{"a", "b"}, comps["a"])
}
