package cycles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/circuit-index/pkg/graph"
	"github.com/ritzau/circuit-index/pkg/model"
)

func recurrentGraph(t *testing.T, nodes int, pairs [][2]int32) *graph.EdgeGraph {
	t.Helper()
	et := model.NewEdgeTable("pop_r", "pop", "pop", len(pairs))
	for i, p := range pairs {
		et.Append(p[0], p[1], 1, 0, int32(i))
	}
	eg, err := graph.NewEdgeGraph(et, nodes, nodes)
	require.NoError(t, err)
	return eg
}

func TestFindRecurrentAssemblies_NoCycles(t *testing.T) {
	// 0 -> 1 -> 2
	eg := recurrentGraph(t, 3, [][2]int32{{0, 1}, {1, 2}})

	assert.Empty(t, FindRecurrentAssemblies(eg))
}

func TestFindRecurrentAssemblies_SelfLoopIsNotAssembly(t *testing.T) {
	eg := recurrentGraph(t, 2, [][2]int32{{0, 0}, {0, 1}})

	assert.Empty(t, FindRecurrentAssemblies(eg))
}

func TestFindRecurrentAssemblies_Multiple(t *testing.T) {
	// Assembly 1: 0 <-> 1, with parallel edges
	// Assembly 2: 2 -> 3 -> 4 -> 2
	// 5 only receives
	eg := recurrentGraph(t, 6, [][2]int32{
		{0, 1}, {1, 0}, {1, 0},
		{2, 3}, {3, 4}, {4, 2},
		{4, 5},
	})

	got := FindRecurrentAssemblies(eg)
	require.Len(t, got, 2)
	assert.Equal(t, []int32{0, 1}, got[0].Nodes)
	assert.Equal(t, []int32{2, 3, 4}, got[1].Nodes)
	assert.Equal(t, "pop_r", got[0].Population)
}

func TestFindRecurrentAssemblies_Ring(t *testing.T) {
	const n = 50
	pairs := make([][2]int32, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, [2]int32{int32((i + 1) % n), int32(i)})
	}
	eg := recurrentGraph(t, n, pairs)

	got := FindRecurrentAssemblies(eg)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Nodes, n)
}

func TestFindRecurrentAssemblies_Bipartite(t *testing.T) {
	et := model.NewEdgeTable("pop_a_b", "pop_a", "pop_b", 2)
	et.Append(0, 0, 1, 0, 0)
	et.Append(0, 0, 1, 0, 1)
	eg, err := graph.NewEdgeGraph(et, 1, 1)
	require.NoError(t, err)

	assert.Nil(t, FindRecurrentAssemblies(eg), "non-recurrent population")
}

func TestTarjanSCC_SimpleGraph(t *testing.T) {
	g := simple.NewDirectedGraph()
	for i := int64(0); i < 4; i++ {
		g.AddNode(simple.Node(i))
	}
	g.SetEdge(g.NewEdge(simple.Node(3), simple.Node(2)))
	g.SetEdge(g.NewEdge(simple.Node(2), simple.Node(3)))
	g.SetEdge(g.NewEdge(simple.Node(0), simple.Node(3)))

	assert.Equal(t, [][]int64{{2, 3}}, NewTarjanSCC(g).FindSCCs())
}
