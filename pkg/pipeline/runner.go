// Package pipeline generates a circuit from a network description and indexes it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/circuit-index/pkg/circuit"
	"github.com/ritzau/circuit-index/pkg/config"
	"github.com/ritzau/circuit-index/pkg/connectivity"
	"github.com/ritzau/circuit-index/pkg/cycles"
	"github.com/ritzau/circuit-index/pkg/export"
	"github.com/ritzau/circuit-index/pkg/graph"
	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/logging"
	"github.com/ritzau/circuit-index/pkg/model"
	"github.com/ritzau/circuit-index/pkg/pubsub"
	"github.com/ritzau/circuit-index/pkg/spikes"
)

const totalSteps = 7

// Sink receives the results of a run. The query server implements it.
type Sink interface {
	SetCircuit(c *circuit.Circuit)
	PublishStatus(status pubsub.CircuitStatus)
}

// Options configures a single run
type Options struct {
	Network     config.Network
	Output      string // Export path; empty skips the export step
	Compression export.Compression
	Verify      bool
	Reason      string // e.g. "initial build", "config changed"
}

// Runner orchestrates generation, indexing, verification and export
type Runner struct {
	sink  Sink
	mu    sync.Mutex // Prevent concurrent runs
	build int
}

// NewRunner creates a runner. sink may be nil.
func NewRunner(sink Sink) *Runner {
	return &Runner{sink: sink}
}

type run struct {
	log    *slog.Logger
	sink   Sink
	build  int
	graphs map[string]*graph.EdgeGraph
}

func (r *run) status(state, message string, step int) {
	if r.sink == nil {
		return
	}
	r.sink.PublishStatus(pubsub.CircuitStatus{State: state, Message: message, Step: step, Total: totalSteps, Build: r.build})
}

func (r *run) fail(step int, err error) error {
	r.log.Error(fmt.Sprintf("[%d/%d] failed", step, totalSteps), "error", err)
	r.status("failed", err.Error(), step)
	return err
}

// Run builds the circuit described by opts. On success the circuit is handed
// to the sink; on failure the sink keeps whatever it had.
func (ru *Runner) Run(ctx context.Context, opts Options) (*circuit.Circuit, error) {
	ru.mu.Lock()
	defer ru.mu.Unlock()
	ru.build++

	r := &run{
		log:    logging.New("pipeline").With("build", ru.build),
		sink:   ru.sink,
		build:  ru.build,
		graphs: make(map[string]*graph.EdgeGraph),
	}
	start := time.Now()
	r.log.Info("starting build", "reason", opts.Reason)

	c := circuit.New()

	// Phase 1: node populations
	r.status("generating", "Generating node populations...", 1)
	for _, p := range opts.Network.Nodes {
		nt, err := connectivity.GenerateNodes(p)
		if err != nil {
			return nil, r.fail(1, err)
		}
		c.Nodes[p.Name] = nt
	}
	r.log.Info("[1/7] generated node populations", "count", len(c.Nodes))

	// Phase 2: edge populations
	r.status("generating", "Generating edge populations...", 2)
	for _, p := range opts.Network.Edges {
		sources, err := c.NodeCount(p.Source)
		if err != nil {
			return nil, r.fail(2, fmt.Errorf("edge population %s: %w", p.Name, err))
		}
		targets, err := c.NodeCount(p.Target)
		if err != nil {
			return nil, r.fail(2, fmt.Errorf("edge population %s: %w", p.Name, err))
		}
		et, err := connectivity.Generate(p, sources, targets)
		if err != nil {
			return nil, r.fail(2, err)
		}
		c.Edges[p.Name] = &circuit.EdgePopulation{Table: et}
		r.log.Debug("generated edge population", "population", p.Name, "pattern", p.Pattern, "edges", et.Len())
	}
	r.log.Info("[2/7] generated edge populations", "count", len(c.Edges))

	// Phase 3: indices, one pair per edge population
	r.status("indexing", "Building adjacency indices...", 3)
	if err := buildIndices(ctx, c); err != nil {
		return nil, r.fail(3, err)
	}
	for _, name := range c.EdgeNames() {
		ep := c.Edges[name]
		s2t, t2s := ep.Index.SourceToTarget.Stats(), ep.Index.TargetToSource.Stats()
		r.log.Debug("indexed edge population", "population", name,
			"s2tRanges", s2t.Ranges, "t2sRanges", t2s.Ranges,
			"splitSources", s2t.MultiRangeNodes, "splitTargets", t2s.MultiRangeNodes)
	}
	r.log.Info("[3/7] built indices", "populations", len(c.Edges))

	// Phase 4: verification against the reference graph
	if opts.Verify {
		r.status("verifying", "Verifying indices...", 4)
		if err := r.verify(ctx, c); err != nil {
			return nil, r.fail(4, err)
		}
		r.log.Info("[4/7] verified indices", "populations", len(c.Edges))
	} else {
		r.log.Info("[4/7] verification skipped")
	}

	// Phase 5: spikes
	r.status("indexing", "Indexing spike trains...", 5)
	for _, t := range opts.Network.Spikes {
		n, err := c.NodeCount(t.Population)
		if err != nil {
			return nil, r.fail(5, fmt.Errorf("spike population %s: %w", t.Name, err))
		}
		st, err := spikes.Generate(t, n)
		if err != nil {
			return nil, r.fail(5, err)
		}
		sorted, ranges, err := spikes.Index(st, n)
		if err != nil {
			return nil, r.fail(5, err)
		}
		c.Spikes[t.Name] = &circuit.SpikePopulation{Table: sorted, GIDToRange: ranges}
	}
	r.log.Info("[5/7] indexed spike populations", "count", len(c.Spikes))

	// Phase 6: recurrent assemblies
	r.status("analyzing", "Finding recurrent assemblies...", 6)
	assemblies := 0
	for _, name := range c.EdgeNames() {
		ep := c.Edges[name]
		if !ep.Table.IsRecurrent() {
			continue
		}
		eg, err := r.edgeGraph(c, name)
		if err != nil {
			return nil, r.fail(6, err)
		}
		ep.Assemblies = cycles.FindRecurrentAssemblies(eg)
		assemblies += len(ep.Assemblies)
		for _, a := range ep.Assemblies {
			r.log.Debug("recurrent assembly", "population", name, "nodes", len(a.Nodes))
		}
	}
	r.log.Info("[6/7] found recurrent assemblies", "count", assemblies)

	// Phase 7: export
	if opts.Output != "" {
		r.status("exporting", "Writing export...", 7)
		if err := export.WriteFile(opts.Output, c, opts.Compression); err != nil {
			return nil, r.fail(7, fmt.Errorf("export %s: %w", opts.Output, err))
		}
		r.log.Info("[7/7] exported circuit", "path", opts.Output, "compression", opts.Compression)
	} else {
		r.log.Info("[7/7] export skipped")
	}

	if r.sink != nil {
		r.sink.SetCircuit(c)
	}
	r.status("ready", "Circuit ready", totalSteps)
	r.log.Info("build complete", "reason", opts.Reason, "duration", time.Since(start).Round(time.Millisecond))
	return c, nil
}

// buildIndices builds every edge population's index pair concurrently
func buildIndices(ctx context.Context, c *circuit.Circuit) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, name := range c.EdgeNames() {
		ep := c.Edges[name]
		sources, _ := c.NodeCount(ep.Table.Source)
		targets, _ := c.NodeCount(ep.Table.Target)
		g.Go(func() error {
			pair, err := index.BuildPair(ctx, ep.Table, sources, targets)
			if err != nil {
				return fmt.Errorf("edge population %s: %w", name, err)
			}
			ep.Index = pair
			return nil
		})
	}
	return g.Wait()
}

func (r *run) verify(ctx context.Context, c *circuit.Circuit) error {
	for _, name := range c.EdgeNames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ep := c.Edges[name]
		eg, err := r.edgeGraph(c, name)
		if err != nil {
			return err
		}
		for _, dir := range model.Directions {
			idx := ep.Index.Get(dir)
			if err := index.Validate(idx, ep.Table.Len()); err != nil {
				return fmt.Errorf("edge population %s: %w", name, err)
			}
			if err := eg.Verify(idx); err != nil {
				return err
			}
		}
		r.log.Debug("verified edge population", "population", name)
	}
	return nil
}

// edgeGraph loads an edge population into a gonum graph once per run
func (r *run) edgeGraph(c *circuit.Circuit, name string) (*graph.EdgeGraph, error) {
	if eg, ok := r.graphs[name]; ok {
		return eg, nil
	}
	ep := c.Edges[name]
	sources, _ := c.NodeCount(ep.Table.Source)
	targets, _ := c.NodeCount(ep.Table.Target)
	eg, err := graph.NewEdgeGraph(ep.Table, sources, targets)
	if err != nil {
		return nil, fmt.Errorf("edge population %s: %w", name, err)
	}
	r.graphs[name] = eg
	return eg, nil
}
