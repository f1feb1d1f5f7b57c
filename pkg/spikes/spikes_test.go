package spikes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/model"
)

func TestRegular(t *testing.T) {
	st, err := Regular("spikes_0", 4, 5, 15, 3)
	require.NoError(t, err)
	require.Equal(t, 20, st.Len())

	assert.Equal(t, []int32{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, st.GIDs[:10])
	assert.Equal(t, []float32{45, 60, 0, 15, 30}, st.Timestamps[:5])
	assert.Equal(t, []float32{60, 75, 15, 30, 45}, st.Timestamps[5:10])
}

func TestRegular_Empty(t *testing.T) {
	st, err := Regular("none", 3, 0, 15, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())

	_, err = Regular("bad", -1, 2, 15, 0)
	require.Error(t, err)
}

func TestIndex_Regular(t *testing.T) {
	st, err := Generate(Train{Name: "spikes_0", Population: "pop_e", PerNode: 5, Interval: 15, Phase: 3}, 4)
	require.NoError(t, err)

	sorted, ranges, err := Index(st, 4)
	require.NoError(t, err)
	assert.Equal(t, "pop_e", sorted.Population)

	for g := 0; g < 4; g++ {
		assert.Equal(t, index.Range{Start: int32(g * 5), End: int32((g + 1) * 5)}, ranges[g])
	}

	times, err := Times(sorted, ranges, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 15, 30, 45, 60}, times)

	// The input table is left untouched.
	assert.Equal(t, float32(45), st.Timestamps[0])
}

func TestIndex_UnsortedAndSparse(t *testing.T) {
	st := &model.SpikeTable{
		Name:       "spikes_1",
		GIDs:       []int32{2, 0, 0, 2},
		Timestamps: []float32{5, 54, 37, 1},
	}

	sorted, ranges, err := Index(st, 3)
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 0, 2, 2}, sorted.GIDs)
	assert.Equal(t, []float32{37, 54, 1, 5}, sorted.Timestamps)
	assert.Equal(t, []index.Range{{0, 2}, {2, 2}, {2, 4}}, ranges)

	times, err := Times(sorted, ranges, 1)
	require.NoError(t, err)
	assert.Empty(t, times)
}

func TestIndex_Errors(t *testing.T) {
	_, _, err := Index(&model.SpikeTable{GIDs: []int32{0, 3}, Timestamps: []float32{1, 2}}, 3)
	var oor *index.OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 1, oor.EdgeID)
	assert.Equal(t, int64(3), oor.NodeID)

	_, _, err = Index(&model.SpikeTable{GIDs: []int32{0}, Timestamps: nil}, 1)
	require.Error(t, err)

	_, err = Times(&model.SpikeTable{}, nil, 0)
	require.ErrorAs(t, err, &oor)
}
