// Package spikes generates spike trains and their gid_to_range index.
package spikes

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/model"
)

// Train describes a regular spike train population.
type Train struct {
	Name       string  `koanf:"name" json:"name"`
	Population string  `koanf:"population" json:"population"`
	PerNode    int     `koanf:"per_node" json:"per_node"`
	Interval   float32 `koanf:"interval" json:"interval"`
	Phase      int     `koanf:"phase" json:"phase"`
}

// Regular emits perNode spikes for each of nodeCount gids. Spike k of gid g
// (row i = g*perNode + k) fires at ((i+phase) mod perNode)*interval + g*interval,
// so within a gid the timestamps are a rotated, evenly spaced sequence.
func Regular(name string, nodeCount, perNode int, interval float32, phase int) (*model.SpikeTable, error) {
	if nodeCount < 0 || perNode < 0 {
		return nil, fmt.Errorf("spike train %s: invalid size %d x %d", name, nodeCount, perNode)
	}
	if nodeCount*perNode > math.MaxInt32 {
		return nil, fmt.Errorf("spike train %s: %w", name, index.ErrTooManyEdges)
	}

	n := nodeCount * perNode
	st := &model.SpikeTable{
		Name:       name,
		GIDs:       make([]int32, n),
		Timestamps: make([]float32, n),
	}
	for i := 0; i < n; i++ {
		g := i / perNode
		st.GIDs[i] = int32(g)
		k := ((i+phase)%perNode + perNode) % perNode
		st.Timestamps[i] = float32(k)*interval + float32(g)*interval
	}
	return st, nil
}

// Generate builds the spike table described by t for a population of nodeCount nodes.
func Generate(t Train, nodeCount int) (*model.SpikeTable, error) {
	st, err := Regular(t.Name, nodeCount, t.PerNode, t.Interval, t.Phase)
	if err != nil {
		return nil, err
	}
	st.Population = t.Population
	return st, nil
}

// Index returns a copy of st sorted by (gid, timestamp) together with its
// gid_to_range table: gid g owns spike rows [start, end) of the sorted copy.
// gids outside [0, nodeCount) fail with *index.OutOfRangeError.
func Index(st *model.SpikeTable, nodeCount int) (*model.SpikeTable, []index.Range, error) {
	if err := st.Validate(); err != nil {
		return nil, nil, err
	}
	if st.Len() > math.MaxInt32 {
		return nil, nil, fmt.Errorf("spike population %s: %w", st.Name, index.ErrTooManyEdges)
	}

	for i, gid := range st.GIDs {
		if gid < 0 || int(gid) >= nodeCount {
			return nil, nil, &index.OutOfRangeError{Direction: "gid_to_range", EdgeID: i, NodeID: int64(gid), NodeCount: nodeCount}
		}
	}

	order := make([]int, st.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(st.GIDs[a], st.GIDs[b]); c != 0 {
			return c
		}
		return cmp.Compare(st.Timestamps[a], st.Timestamps[b])
	})

	sorted := &model.SpikeTable{
		Name:       st.Name,
		Population: st.Population,
		GIDs:       make([]int32, len(order)),
		Timestamps: make([]float32, len(order)),
	}
	for i, j := range order {
		sorted.GIDs[i] = st.GIDs[j]
		sorted.Timestamps[i] = st.Timestamps[j]
	}

	ranges := make([]index.Range, nodeCount)
	row := int32(0)
	for g := range ranges {
		start := row
		for int(row) < len(sorted.GIDs) && sorted.GIDs[row] == int32(g) {
			row++
		}
		ranges[g] = index.Range{Start: start, End: row}
	}
	return sorted, ranges, nil
}

// Times returns the timestamps of gid from a table sorted by Index.
func Times(sorted *model.SpikeTable, ranges []index.Range, gid int) ([]float32, error) {
	if gid < 0 || gid >= len(ranges) {
		return nil, &index.OutOfRangeError{Direction: "gid_to_range", EdgeID: -1, NodeID: int64(gid), NodeCount: len(ranges)}
	}
	r := ranges[gid]
	return slices.Clone(sorted.Timestamps[r.Start:r.End]), nil
}
