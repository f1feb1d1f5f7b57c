package graph

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/multi"

	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/model"
)

// EdgeGraph is an edge population loaded into a gonum multigraph. Every edge
// becomes a line whose ID is the edge id, so parallel edges between the same
// pair of nodes stay distinct.
//
// Source nodes keep their node id as gonum id. Target nodes are shifted by
// the source population size, except for recurrent populations where both
// endpoints live in the same population.
type EdgeGraph struct {
	Name      string
	graph     *multi.DirectedGraph
	sources   int
	targets   int
	offset    int64
	recurrent bool
	edges     int
}

// NewEdgeGraph loads et into a multigraph. Node ids outside their population
// fail with *index.OutOfRangeError.
func NewEdgeGraph(et *model.EdgeTable, sourceCount, targetCount int) (*EdgeGraph, error) {
	if err := et.Validate(); err != nil {
		return nil, err
	}

	eg := &EdgeGraph{
		Name:      et.Name,
		graph:     multi.NewDirectedGraph(),
		sources:   sourceCount,
		targets:   targetCount,
		offset:    int64(sourceCount),
		recurrent: et.IsRecurrent(),
		edges:     et.Len(),
	}
	if eg.recurrent {
		if sourceCount != targetCount {
			return nil, fmt.Errorf("edge population %s: recurrent with %d sources and %d targets", et.Name, sourceCount, targetCount)
		}
		eg.offset = 0
	}

	// All nodes are added up front so that unconnected nodes are present
	for i := 0; i < sourceCount; i++ {
		eg.graph.AddNode(multi.Node(i))
	}
	if !eg.recurrent {
		for i := 0; i < targetCount; i++ {
			eg.graph.AddNode(multi.Node(eg.offset + int64(i)))
		}
	}

	for id := 0; id < et.Len(); id++ {
		s, t := et.SourceNodeID[id], et.TargetNodeID[id]
		if s < 0 || int(s) >= sourceCount {
			return nil, &index.OutOfRangeError{Direction: model.SourceToTarget, EdgeID: id, NodeID: int64(s), NodeCount: sourceCount}
		}
		if t < 0 || int(t) >= targetCount {
			return nil, &index.OutOfRangeError{Direction: model.TargetToSource, EdgeID: id, NodeID: int64(t), NodeCount: targetCount}
		}
		eg.graph.SetLine(multi.Line{
			F:   eg.graph.Node(int64(s)),
			T:   eg.graph.Node(eg.offset + int64(t)),
			UID: int64(id),
		})
	}

	return eg, nil
}

// Graph returns the underlying multigraph
func (eg *EdgeGraph) Graph() *multi.DirectedGraph {
	return eg.graph
}

// Recurrent reports whether sources and targets share one population
func (eg *EdgeGraph) Recurrent() bool {
	return eg.recurrent
}

// EdgeCount returns the number of lines in the graph
func (eg *EdgeGraph) EdgeCount() int {
	return eg.edges
}

// GraphID maps a population node id to its gonum node id
func (eg *EdgeGraph) GraphID(dir model.Direction, node int) int64 {
	if dir == model.TargetToSource {
		return eg.offset + int64(node)
	}
	return int64(node)
}

// PopulationNode maps a gonum node id back to the population it belongs to
// and its node id there.
func (eg *EdgeGraph) PopulationNode(id int64) (model.Direction, int) {
	if !eg.recurrent && id >= eg.offset {
		return model.TargetToSource, int(id - eg.offset)
	}
	return model.SourceToTarget, int(id)
}

// IncidentEdges returns the ids of all edges whose dir endpoint is node,
// ascending. It walks the graph and is the reference the index is checked against.
func (eg *EdgeGraph) IncidentEdges(dir model.Direction, node int) ([]int32, error) {
	count := eg.sources
	if dir == model.TargetToSource {
		count = eg.targets
	}
	if node < 0 || node >= count {
		return nil, &index.OutOfRangeError{Direction: dir, EdgeID: -1, NodeID: int64(node), NodeCount: count}
	}

	id := eg.GraphID(dir, node)
	var ids []int32
	if dir == model.TargetToSource {
		from := eg.graph.To(id)
		for from.Next() {
			ids = appendLines(ids, eg.graph, from.Node().ID(), id)
		}
	} else {
		to := eg.graph.From(id)
		for to.Next() {
			ids = appendLines(ids, eg.graph, id, to.Node().ID())
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func appendLines(ids []int32, g *multi.DirectedGraph, from, to int64) []int32 {
	lines := g.Lines(from, to)
	for lines.Next() {
		ids = append(ids, int32(lines.Line().ID()))
	}
	return ids
}

// MismatchError reports a node whose indexed edges differ from the graph.
type MismatchError struct {
	Population string
	Direction  model.Direction
	Node       int
	Indexed    []int32
	Reference  []int32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("edge population %s %s: node %d indexes %d edges, graph has %d",
		e.Population, e.Direction, e.Node, len(e.Indexed), len(e.Reference))
}

// Verify checks every node of idx against IncidentEdges
func (eg *EdgeGraph) Verify(idx *index.Index) error {
	for node := 0; node < idx.NodeCount(); node++ {
		got, err := idx.Lookup(node)
		if err != nil {
			return err
		}
		want, err := eg.IncidentEdges(idx.Direction, node)
		if err != nil {
			return err
		}
		if !slices.Equal(got, want) {
			return &MismatchError{Population: eg.Name, Direction: idx.Direction, Node: node, Indexed: got, Reference: want}
		}
	}
	if idx.EdgeCount() != eg.edges {
		return &index.InconsistentEdgeCountError{Direction: idx.Direction, Expected: eg.edges, Actual: idx.EdgeCount()}
	}
	return nil
}
