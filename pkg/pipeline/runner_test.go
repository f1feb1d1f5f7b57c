package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/circuit-index/pkg/circuit"
	"github.com/ritzau/circuit-index/pkg/config"
	"github.com/ritzau/circuit-index/pkg/connectivity"
	"github.com/ritzau/circuit-index/pkg/export"
	"github.com/ritzau/circuit-index/pkg/pubsub"
)

type recordingSink struct {
	mu       sync.Mutex
	circuit  *circuit.Circuit
	statuses []pubsub.CircuitStatus
}

func (s *recordingSink) SetCircuit(c *circuit.Circuit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuit = c
}

func (s *recordingSink) PublishStatus(status pubsub.CircuitStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func TestRun_DefaultNetwork(t *testing.T) {
	sink := &recordingSink{}
	r := NewRunner(sink)
	out := filepath.Join(t.TempDir(), "circuit.json.zst")

	c, err := r.Run(context.Background(), Options{
		Network:     config.DefaultNetwork(),
		Output:      out,
		Compression: export.CompressionZstd,
		Verify:      true,
		Reason:      "test",
	})
	require.NoError(t, err)

	assert.Same(t, c, sink.circuit, "sink should receive the built circuit")
	last := sink.statuses[len(sink.statuses)-1]
	assert.Equal(t, "ready", last.State)
	assert.Equal(t, 1, last.Build)
	assert.Equal(t, totalSteps, last.Total)

	require.Len(t, c.Edges, 5)
	for _, name := range c.EdgeNames() {
		ep := c.Edges[name]
		require.NotNil(t, ep.Index, name)
		assert.NotNil(t, ep.Index.SourceToTarget, name)
		assert.NotNil(t, ep.Index.TargetToSource, name)
	}

	// pop_e_e is a convergent ring with offset 1, so every node is on a cycle
	ee := c.Edges["pop_e_e"]
	require.Len(t, ee.Assemblies, 1)
	assert.Len(t, ee.Assemblies[0].Nodes, 400)
	assert.Empty(t, c.Edges["pop_e_i"].Assemblies, "non-recurrent population")

	doc, err := export.ReadFile(out)
	require.NoError(t, err)
	_, err = doc.Circuit()
	assert.NoError(t, err, "exported circuit should load")
}

func TestRun_SkipsExportAndVerify(t *testing.T) {
	c, err := NewRunner(nil).Run(context.Background(), Options{Network: config.DefaultNetwork()})
	require.NoError(t, err)
	assert.Len(t, c.Spikes, 1)
}

func TestRun_FailureKeepsPreviousCircuit(t *testing.T) {
	sink := &recordingSink{}
	r := NewRunner(sink)

	good, err := r.Run(context.Background(), Options{Network: config.DefaultNetwork()})
	require.NoError(t, err)

	bad := config.Network{
		Nodes: []connectivity.NodePopulation{{Name: "a", Size: 2, TypeID: 1}},
		Edges: []connectivity.Projection{{
			Name: "a_a", Source: "a", Target: "a", Pattern: connectivity.Explicit,
			Pairs: [][]int32{{0, 5}},
		}},
	}
	_, err = r.Run(context.Background(), Options{Network: bad})
	require.Error(t, err, "out of range pair")

	assert.Same(t, good, sink.circuit, "a failed run must not replace the served circuit")
	last := sink.statuses[len(sink.statuses)-1]
	assert.Equal(t, "failed", last.State)
	assert.Equal(t, 2, last.Build)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil).Run(ctx, Options{Network: config.DefaultNetwork(), Verify: true})
	assert.ErrorIs(t, err, context.Canceled)
}
