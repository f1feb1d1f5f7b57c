package cycles

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph"
)

// TarjanSCC finds the strongly connected components of a directed graph
// that contain more than one node.
//
// Nodes are visited in ascending id order and every component is returned
// sorted, so the result does not depend on gonum's map iteration order.
type TarjanSCC struct {
	graph   graph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

// NewTarjanSCC creates a new Tarjan SCC finder
func NewTarjanSCC(g graph.Directed) *TarjanSCC {
	return &TarjanSCC{
		graph:   g,
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
	}
}

// FindSCCs returns the components ordered by their smallest node id
func (t *TarjanSCC) FindSCCs() [][]int64 {
	for _, id := range sortedIDs(t.graph.Nodes()) {
		if _, visited := t.indices[id]; !visited {
			t.strongConnect(id)
		}
	}
	slices.SortFunc(t.sccs, func(a, b []int64) int {
		return cmp.Compare(a[0], b[0])
	})
	return t.sccs
}

func (t *TarjanSCC) strongConnect(nodeID int64) {
	t.indices[nodeID] = t.index
	t.lowLink[nodeID] = t.index
	t.index++

	t.stack = append(t.stack, nodeID)
	t.onStack[nodeID] = true

	for _, next := range sortedIDs(t.graph.From(nodeID)) {
		if _, visited := t.indices[next]; !visited {
			t.strongConnect(next)
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.lowLink[next])
		} else if t.onStack[next] {
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.indices[next])
		}
	}

	if t.lowLink[nodeID] != t.indices[nodeID] {
		return
	}

	// nodeID is the root of a component: pop it off the stack
	var scc []int64
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == nodeID {
			break
		}
	}
	// Single nodes are not assemblies, even with a self-loop
	if len(scc) > 1 {
		slices.Sort(scc)
		t.sccs = append(t.sccs, scc)
	}
}

func sortedIDs(nodes graph.Nodes) []int64 {
	ids := make([]int64, 0, max(nodes.Len(), 0))
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	slices.Sort(ids)
	return ids
}
