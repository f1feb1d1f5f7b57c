package cycles

import (
	"github.com/ritzau/circuit-index/pkg/graph"
)

// Assembly is a set of nodes of a recurrent edge population that can all
// reach each other along edges.
type Assembly struct {
	Population string  `json:"population"`
	Nodes      []int32 `json:"nodes"`
}

// FindRecurrentAssemblies returns the assemblies of eg. Populations that
// connect two different node populations cannot contain any and yield nil.
func FindRecurrentAssemblies(eg *graph.EdgeGraph) []Assembly {
	if !eg.Recurrent() {
		return nil
	}

	sccs := NewTarjanSCC(eg.Graph()).FindSCCs()
	assemblies := make([]Assembly, 0, len(sccs))
	for _, scc := range sccs {
		nodes := make([]int32, 0, len(scc))
		for _, id := range scc {
			_, node := eg.PopulationNode(id)
			nodes = append(nodes, int32(node))
		}
		assemblies = append(assemblies, Assembly{Population: eg.Name, Nodes: nodes})
	}
	return assemblies
}
