// Package circuit holds a fully indexed circuit: node tables, edge tables
// with both adjacency indices, and sorted spike tables.
package circuit

import (
	"fmt"
	"slices"

	"github.com/ritzau/circuit-index/pkg/cycles"
	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/model"
)

// EdgePopulation is an edge table with its indices.
type EdgePopulation struct {
	Table      *model.EdgeTable
	Index      *index.Pair
	Assemblies []cycles.Assembly
}

// SpikePopulation is a spike table sorted by gid with its gid_to_range table.
type SpikePopulation struct {
	Table      *model.SpikeTable
	GIDToRange []index.Range
}

// Circuit is immutable once handed out by the pipeline.
type Circuit struct {
	Nodes  map[string]*model.NodeTable
	Edges  map[string]*EdgePopulation
	Spikes map[string]*SpikePopulation
}

// New returns an empty circuit
func New() *Circuit {
	return &Circuit{
		Nodes:  make(map[string]*model.NodeTable),
		Edges:  make(map[string]*EdgePopulation),
		Spikes: make(map[string]*SpikePopulation),
	}
}

// NodeCount returns the size of the named node population
func (c *Circuit) NodeCount(population string) (int, error) {
	nt, ok := c.Nodes[population]
	if !ok {
		return 0, fmt.Errorf("unknown node population %q", population)
	}
	return nt.Size(), nil
}

// EdgeNames returns the edge population names, sorted
func (c *Circuit) EdgeNames() []string {
	return sortedKeys(c.Edges)
}

// NodeNames returns the node population names, sorted
func (c *Circuit) NodeNames() []string {
	return sortedKeys(c.Nodes)
}

// SpikeNames returns the spike population names, sorted
func (c *Circuit) SpikeNames() []string {
	return sortedKeys(c.Spikes)
}

// Summary is a compact description of a circuit.
type Summary struct {
	Nodes  map[string]int         `json:"nodes"`
	Edges  map[string]EdgeSummary `json:"edges"`
	Spikes map[string]int         `json:"spikes"`
}

// EdgeSummary describes one edge population.
type EdgeSummary struct {
	Source     string                          `json:"source"`
	Target     string                          `json:"target"`
	Edges      int                             `json:"edges"`
	Recurrent  bool                            `json:"recurrent"`
	Assemblies int                             `json:"assemblies"`
	Indices    map[model.Direction]index.Stats `json:"indices"`
}

// Summarize describes c.
func (c *Circuit) Summarize() Summary {
	s := Summary{
		Nodes:  make(map[string]int, len(c.Nodes)),
		Edges:  make(map[string]EdgeSummary, len(c.Edges)),
		Spikes: make(map[string]int, len(c.Spikes)),
	}
	for name, nt := range c.Nodes {
		s.Nodes[name] = nt.Size()
	}
	for name, ep := range c.Edges {
		es := EdgeSummary{
			Source:     ep.Table.Source,
			Target:     ep.Table.Target,
			Edges:      ep.Table.Len(),
			Recurrent:  ep.Table.IsRecurrent(),
			Assemblies: len(ep.Assemblies),
			Indices:    make(map[model.Direction]index.Stats, 2),
		}
		if ep.Index != nil {
			for _, dir := range model.Directions {
				es.Indices[dir] = ep.Index.Get(dir).Stats()
			}
		}
		s.Edges[name] = es
	}
	for name, sp := range c.Spikes {
		s.Spikes[name] = sp.Table.Len()
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
