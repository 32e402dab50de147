package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	order, err := New().TopologicalSort()
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestTopologicalSort_InsertionOrderWithinLevel(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("Z")
	g.AddEdge("A", "D")
	g.AddEdge("A", "C")
	g.AddEdge("C", "D")

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "A", "C", "D"}, order)
}

func TestTopologicalSort_Cycle(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "B")

	_, err := g.TopologicalSort()
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"B", "C"}, cycle.Cycle)
	assert.Equal(t, "dependency cycle detected: B -> C", err.Error())
}

func TestAddEdge_Duplicate(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")
	assert.Equal(t, []string{"A"}, g.Dependencies("B"))
	assert.Equal(t, []string{"A", "B"}, g.Nodes())
}

func TestPlan(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("compile", "generate")
	g.AddEdge("generate", "package")
	g.AddNode("lint")

	order, err := g.Plan("generate")
	require.NoError(t, err)
	assert.Equal(t, []string{"compile", "generate"}, order)

	order, err = g.Plan("compile")
	require.NoError(t, err)
	assert.Equal(t, []string{"compile"}, order)

	order, err = g.Plan("lint")
	require.NoError(t, err)
	assert.Equal(t, []string{"lint"}, order)
}

func TestPlan_Unknown(t *testing.T) {
	t.Parallel()
	_, err := New().Plan("missing")
	var unknown *UnknownNodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
}

func TestPlan_CycleAmongDependencies(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")
	g.AddEdge("B", "C")
	g.AddNode("D")

	_, err := g.Plan("C")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"A", "B", "C"}, cycle.Cycle)
}
