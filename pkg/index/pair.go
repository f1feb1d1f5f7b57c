package index

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/circuit-index/pkg/model"
)

// Pair holds both directions of an edge population's index.
type Pair struct {
	SourceToTarget *Index
	TargetToSource *Index
}

// Get returns the index for dir.
func (p *Pair) Get(dir model.Direction) *Index {
	if dir == model.TargetToSource {
		return p.TargetToSource
	}
	return p.SourceToTarget
}

// BuildPair builds the source and target indices of edges concurrently.
// The first failing direction aborts the pair; no partial pair is returned.
func BuildPair(ctx context.Context, edges *model.EdgeTable, sourceCount, targetCount int) (*Pair, error) {
	g, ctx := errgroup.WithContext(ctx)

	var pair Pair
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx, err := Build(edges, model.SourceToTarget, sourceCount)
		if err != nil {
			return err
		}
		pair.SourceToTarget = idx
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx, err := Build(edges, model.TargetToSource, targetCount)
		if err != nil {
			return err
		}
		pair.TargetToSource = idx
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Stats summarises the shape of an index.
type Stats struct {
	Nodes            int `json:"nodes"`
	Ranges           int `json:"ranges"`
	Edges            int `json:"edges"`
	EmptyNodes       int `json:"empty_nodes"`
	MultiRangeNodes  int `json:"multi_range_nodes"`
	MaxRangesPerNode int `json:"max_ranges_per_node"`
}

// Stats computes summary statistics of the index.
func (idx *Index) Stats() Stats {
	s := Stats{
		Nodes:  len(idx.NodeIDToRanges),
		Ranges: len(idx.RangeToEdgeID),
		Edges:  idx.edgeCount,
	}
	for _, r := range idx.NodeIDToRanges {
		n := r.Len()
		switch {
		case n <= 0:
			s.EmptyNodes++
		case n > 1:
			s.MultiRangeNodes++
		}
		s.MaxRangesPerNode = max(s.MaxRangesPerNode, n)
	}
	return s
}
