package index

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/circuit-index/pkg/model"
)

func edgeTable(pairs ...[2]int32) *model.EdgeTable {
	et := model.NewEdgeTable("test", "src", "tgt", len(pairs))
	for i, p := range pairs {
		et.Append(p[0], p[1], 0, 0, int32(i))
	}
	return et
}

func TestBuild_SingleEdge(t *testing.T) {
	et := edgeTable([2]int32{0, 1})

	src, err := Build(et, model.SourceToTarget, 1)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 1}}, src.NodeIDToRanges)
	assert.Equal(t, []Range{{0, 1}}, src.RangeToEdgeID)

	tgt, err := Build(et, model.TargetToSource, 2)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 0}, {0, 1}}, tgt.NodeIDToRanges)
	assert.Equal(t, []Range{{0, 1}}, tgt.RangeToEdgeID)
}

func TestBuild_DisjointFanOut(t *testing.T) {
	et := edgeTable([2]int32{0, 0}, [2]int32{0, 1}, [2]int32{1, 0})

	src, err := Build(et, model.SourceToTarget, 2)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 1}, {1, 2}}, src.NodeIDToRanges)
	assert.Equal(t, []Range{{0, 2}, {2, 3}}, src.RangeToEdgeID)

	ids, err := src.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1}, ids)

	// Target node 0 owns two runs: edge 0 and edge 2.
	tgt, err := Build(et, model.TargetToSource, 2)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 2}, {2, 3}}, tgt.NodeIDToRanges)
	assert.Equal(t, []Range{{0, 1}, {2, 3}, {1, 2}}, tgt.RangeToEdgeID)

	ids, err = tgt.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2}, ids)

	ids, err = tgt.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, ids)

	stats := tgt.Stats()
	assert.Equal(t, 1, stats.MultiRangeNodes)
	assert.Equal(t, 2, stats.MaxRangesPerNode)
}

func TestBuild_EmptyTable(t *testing.T) {
	et := edgeTable()

	for _, dir := range model.Directions {
		idx, err := Build(et, dir, 3)
		require.NoError(t, err)
		assert.Equal(t, []Range{{0, 0}, {0, 0}, {0, 0}}, idx.NodeIDToRanges)
		assert.Empty(t, idx.RangeToEdgeID)
		assert.Equal(t, 3, idx.Stats().EmptyNodes)
		require.NoError(t, Validate(idx, 0))
	}
}

// Two-edge fixture: sources 0 and 2 converge on target 0.
func TestBuild_ConvergingPair(t *testing.T) {
	et := edgeTable([2]int32{0, 0}, [2]int32{2, 0})

	src, err := Build(et, model.SourceToTarget, 4)
	require.NoError(t, err)
	n2r, r2e := src.Tables()
	assert.Equal(t, [][2]int32{{0, 1}, {1, 1}, {1, 2}, {2, 2}}, n2r)
	assert.Equal(t, [][2]int32{{0, 1}, {1, 2}}, r2e)

	tgt, err := Build(et, model.TargetToSource, 1)
	require.NoError(t, err)
	n2r, r2e = tgt.Tables()
	assert.Equal(t, [][2]int32{{0, 1}}, n2r)
	assert.Equal(t, [][2]int32{{0, 2}}, r2e)
}

func TestBuild_OutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		edges     *model.EdgeTable
		dir       model.Direction
		nodeCount int
		wantEdge  int
		wantNode  int64
	}{
		{
			name:      "source too large",
			edges:     edgeTable([2]int32{0, 0}, [2]int32{4, 0}),
			dir:       model.SourceToTarget,
			nodeCount: 4,
			wantEdge:  1,
			wantNode:  4,
		},
		{
			name:      "negative target",
			edges:     edgeTable([2]int32{0, -1}),
			dir:       model.TargetToSource,
			nodeCount: 1,
			wantEdge:  0,
			wantNode:  -1,
		},
		{
			name:      "empty population",
			edges:     edgeTable([2]int32{0, 0}),
			dir:       model.TargetToSource,
			nodeCount: 0,
			wantEdge:  0,
			wantNode:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Build(tt.edges, tt.dir, tt.nodeCount)
			require.Error(t, err)
			assert.Nil(t, idx)

			var oor *OutOfRangeError
			require.ErrorAs(t, err, &oor)
			assert.Equal(t, tt.dir, oor.Direction)
			assert.Equal(t, tt.wantEdge, oor.EdgeID)
			assert.Equal(t, tt.wantNode, oor.NodeID)
			assert.Equal(t, tt.nodeCount, oor.NodeCount)
		})
	}
}

func TestBuild_InvalidNodeCount(t *testing.T) {
	_, err := Build(edgeTable(), model.SourceToTarget, -1)
	require.Error(t, err)
}

func TestLookup_OutOfRange(t *testing.T) {
	idx, err := Build(edgeTable([2]int32{0, 0}), model.SourceToTarget, 1)
	require.NoError(t, err)

	for _, node := range []int{-1, 1} {
		_, err := idx.Lookup(node)
		var oor *OutOfRangeError
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, -1, oor.EdgeID)
		assert.Equal(t, int64(node), oor.NodeID)
	}
}

func TestSpans_ReturnsCopy(t *testing.T) {
	idx, err := Build(edgeTable([2]int32{0, 0}), model.SourceToTarget, 1)
	require.NoError(t, err)

	spans, err := idx.Spans(0)
	require.NoError(t, err)
	spans[0].End = 99

	assert.Equal(t, Range{0, 1}, idx.RangeToEdgeID[0])
}

// randomEdges returns a table with skewed, unsorted connectivity so that most
// nodes end up with several runs.
func randomEdges(rng *rand.Rand, sources, targets, n int) *model.EdgeTable {
	et := model.NewEdgeTable("random", "src", "tgt", n)
	for i := 0; i < n; i++ {
		var s int32
		if rng.IntN(3) == 0 && i > 0 {
			s = et.SourceNodeID[i-1] // keep some runs longer than one edge
		} else {
			s = int32(rng.IntN(sources))
		}
		et.Append(s, int32(rng.IntN(targets)), 0, 0, int32(i))
	}
	return et
}

func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 50; trial++ {
		sources := 1 + rng.IntN(20)
		targets := 1 + rng.IntN(20)
		n := rng.IntN(200)
		et := randomEdges(rng, sources, targets, n)

		pair, err := BuildPair(context.Background(), et, sources, targets)
		require.NoError(t, err)

		for _, dir := range model.Directions {
			idx := pair.Get(dir)
			require.Equal(t, dir, idx.Direction)
			require.NoError(t, Validate(idx, n), "trial %d %s", trial, dir)

			// Round trip against a brute-force scan.
			expected := make([][]int32, idx.NodeCount())
			for id, node := range et.Column(dir) {
				expected[node] = append(expected[node], int32(id))
			}

			seen := make([]int, n)
			sum := 0
			for node := 0; node < idx.NodeCount(); node++ {
				ids, err := idx.Lookup(node)
				require.NoError(t, err)
				assert.Equal(t, len(expected[node]), len(ids), "trial %d %s node %d", trial, dir, node)
				assert.ElementsMatch(t, expected[node], ids, "trial %d %s node %d", trial, dir, node)
				for _, id := range ids {
					seen[id]++
				}

				if len(expected[node]) == 0 {
					assert.True(t, idx.NodeIDToRanges[node].Empty())
				}
			}
			for id, count := range seen {
				assert.Equal(t, 1, count, "trial %d %s edge %d", trial, dir, id)
			}

			for _, r := range idx.RangeToEdgeID {
				assert.False(t, r.Empty(), "range entries are never empty")
				sum += r.Len()
			}
			assert.Equal(t, n, sum)
			assert.Equal(t, n, idx.EdgeCount())
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	et := randomEdges(rng, 10, 10, 100)

	a, err := Build(et, model.TargetToSource, 10)
	require.NoError(t, err)
	b, err := Build(et, model.TargetToSource, 10)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildPair_PropagatesError(t *testing.T) {
	et := edgeTable([2]int32{0, 0}, [2]int32{0, 5})

	pair, err := BuildPair(context.Background(), et, 1, 2)
	require.Error(t, err)
	assert.Nil(t, pair)

	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, model.TargetToSource, oor.Direction)
	assert.Equal(t, 1, oor.EdgeID)
}

func TestBuildPair_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildPair(ctx, edgeTable([2]int32{0, 0}), 1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
