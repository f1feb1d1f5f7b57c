// Package index builds the per-direction adjacency range tables of an edge
// population: node_id_to_ranges maps a node to a span of range entries and
// range_to_edge_id maps each range entry to a contiguous span of edge ids.
package index

import (
	"fmt"
	"math"
	"slices"

	"github.com/ritzau/circuit-index/pkg/model"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start int32 `json:"start"`
	End   int32 `json:"end"`
}

// Len returns the number of elements in the range.
func (r Range) Len() int {
	return int(r.End - r.Start)
}

// Empty reports whether the range contains no elements.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Index is the adjacency index of one direction. It is immutable once built.
type Index struct {
	Direction      model.Direction
	NodeIDToRanges []Range // One entry per node
	RangeToEdgeID  []Range // One entry per run of consecutive edges
	edgeCount      int
}

// Build derives the index of edges for dir. nodeCount is the size of the node
// population selected by dir.
//
// Edges are split into maximal runs of consecutive edge ids sharing the
// selected node. Each node owns as many consecutive range entries as it has
// runs, in edge-id order; nodes without edges own an empty range.
func Build(edges *model.EdgeTable, dir model.Direction, nodeCount int) (*Index, error) {
	if nodeCount < 0 || nodeCount > math.MaxInt32 {
		return nil, fmt.Errorf("%s: invalid node count %d", dir, nodeCount)
	}

	col := edges.Column(dir)
	if len(col) > math.MaxInt32 {
		return nil, fmt.Errorf("%s: %d edges: %w", dir, len(col), ErrTooManyEdges)
	}

	for i, n := range col {
		if n < 0 || int(n) >= nodeCount {
			return nil, &OutOfRangeError{Direction: dir, EdgeID: i, NodeID: int64(n), NodeCount: nodeCount}
		}
	}

	// Count runs per node.
	cursor := make([]int32, nodeCount)
	numRuns := 0
	for i, n := range col {
		if i == 0 || col[i-1] != n {
			cursor[n]++
			numRuns++
		}
	}

	nodeRanges := make([]Range, nodeCount)
	next := int32(0)
	for n, runs := range cursor {
		nodeRanges[n] = Range{Start: next, End: next + runs}
		cursor[n] = next
		next += runs
	}

	rangeToEdge := make([]Range, numRuns)
	start := 0
	for i := 1; i <= len(col); i++ {
		if i < len(col) && col[i] == col[start] {
			continue
		}
		n := col[start]
		rangeToEdge[cursor[n]] = Range{Start: int32(start), End: int32(i)}
		cursor[n]++
		start = i
	}

	total := 0
	for _, r := range rangeToEdge {
		total += r.Len()
	}
	if total != len(col) {
		return nil, &InconsistentEdgeCountError{Direction: dir, Expected: len(col), Actual: total}
	}

	return &Index{
		Direction:      dir,
		NodeIDToRanges: nodeRanges,
		RangeToEdgeID:  rangeToEdge,
		edgeCount:      len(col),
	}, nil
}

// NodeCount returns the size of the indexed node population.
func (idx *Index) NodeCount() int {
	return len(idx.NodeIDToRanges)
}

// EdgeCount returns the number of edges spanned by the index.
func (idx *Index) EdgeCount() int {
	return idx.edgeCount
}

// Spans returns the edge spans incident to node, in edge-id order.
func (idx *Index) Spans(node int) ([]Range, error) {
	if node < 0 || node >= len(idx.NodeIDToRanges) {
		return nil, &OutOfRangeError{Direction: idx.Direction, EdgeID: -1, NodeID: int64(node), NodeCount: len(idx.NodeIDToRanges)}
	}
	r := idx.NodeIDToRanges[node]
	return slices.Clone(idx.RangeToEdgeID[r.Start:r.End]), nil
}

// Lookup returns every edge id incident to node, ascending.
func (idx *Index) Lookup(node int) ([]int32, error) {
	spans, err := idx.Spans(node)
	if err != nil {
		return nil, err
	}

	n := 0
	for _, s := range spans {
		n += s.Len()
	}
	ids := make([]int32, 0, n)
	for _, s := range spans {
		for id := s.Start; id < s.End; id++ {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Tables returns the index in the (n, 2) int32 layout of the container.
func (idx *Index) Tables() (nodeIDToRanges, rangeToEdgeID [][2]int32) {
	return toPairs(idx.NodeIDToRanges), toPairs(idx.RangeToEdgeID)
}

// FromTables wraps tables read from a container. The result is not checked;
// run Validate before trusting it.
func FromTables(dir model.Direction, nodeIDToRanges, rangeToEdgeID [][2]int32) *Index {
	idx := &Index{
		Direction:      dir,
		NodeIDToRanges: fromPairs(nodeIDToRanges),
		RangeToEdgeID:  fromPairs(rangeToEdgeID),
	}
	for _, r := range idx.RangeToEdgeID {
		if !r.Empty() {
			idx.edgeCount += r.Len()
		}
	}
	return idx
}

func toPairs(ranges []Range) [][2]int32 {
	out := make([][2]int32, len(ranges))
	for i, r := range ranges {
		out[i] = [2]int32{r.Start, r.End}
	}
	return out
}

func fromPairs(pairs [][2]int32) []Range {
	out := make([]Range, len(pairs))
	for i, p := range pairs {
		out[i] = Range{Start: p[0], End: p[1]}
	}
	return out
}
