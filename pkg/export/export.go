// Package export writes an indexed circuit as a single JSON document laid out
// like the edge and spike containers: edges/<population>/indices/<direction>/
// {node_id_to_ranges, range_to_edge_id} and spikes/<population>/gid_to_range.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	gojson "github.com/goccy/go-json"

	"github.com/ritzau/circuit-index/pkg/circuit"
	"github.com/ritzau/circuit-index/pkg/cycles"
	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/model"
	"github.com/ritzau/circuit-index/pkg/spikes"
)

// Format identifies documents written by this package
const Format = "circuit-index/v1"

// Document is the serialized form of a circuit.
type Document struct {
	Format string                      `json:"format"`
	Nodes  map[string]*model.NodeTable `json:"nodes"`
	Edges  map[string]*EdgePopulation  `json:"edges"`
	Spikes map[string]*SpikePopulation `json:"spikes"`
}

// EdgePopulation is one edge container.
type EdgePopulation struct {
	*model.EdgeTable
	Indices    map[model.Direction]*Tables `json:"indices"`
	Assemblies []cycles.Assembly           `json:"assemblies,omitempty"`
}

// Tables are the two index datasets of one direction.
type Tables struct {
	NodeIDToRanges [][2]int32 `json:"node_id_to_ranges"`
	RangeToEdgeID  [][2]int32 `json:"range_to_edge_id"`
}

// SpikePopulation is one sorted spike container.
type SpikePopulation struct {
	*model.SpikeTable
	GIDToRange [][2]int32 `json:"gid_to_range"`
}

// FromCircuit converts c into a document
func FromCircuit(c *circuit.Circuit) *Document {
	doc := &Document{
		Format: Format,
		Nodes:  c.Nodes,
		Edges:  make(map[string]*EdgePopulation, len(c.Edges)),
		Spikes: make(map[string]*SpikePopulation, len(c.Spikes)),
	}
	for name, ep := range c.Edges {
		out := &EdgePopulation{
			EdgeTable:  ep.Table,
			Indices:    make(map[model.Direction]*Tables, 2),
			Assemblies: ep.Assemblies,
		}
		for _, dir := range model.Directions {
			n2r, r2e := ep.Index.Get(dir).Tables()
			out.Indices[dir] = &Tables{NodeIDToRanges: n2r, RangeToEdgeID: r2e}
		}
		doc.Edges[name] = out
	}
	for name, sp := range c.Spikes {
		pairs := make([][2]int32, len(sp.GIDToRange))
		for i, r := range sp.GIDToRange {
			pairs[i] = [2]int32{r.Start, r.End}
		}
		doc.Spikes[name] = &SpikePopulation{SpikeTable: sp.Table, GIDToRange: pairs}
	}
	return doc
}

// Write encodes c to w
func Write(w io.Writer, c *circuit.Circuit, comp Compression) error {
	cw, err := compressor(w, comp)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(cw)
	if err := gojson.NewEncoder(bw).Encode(FromCircuit(c)); err != nil {
		cw.Close()
		return fmt.Errorf("encode circuit: %w", err)
	}
	if err := bw.Flush(); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}

// WriteFile writes c to path, replacing it only once the write succeeded.
func WriteFile(path string, c *circuit.Circuit, comp Compression) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	tmp := f.Name()
	if err := Write(f, c, comp); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Read decodes a document. The compression is detected from the leading bytes.
func Read(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(4)

	dr, err := decompressor(br, detect(head))
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	var doc Document
	if err := gojson.NewDecoder(dr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode circuit: %w", err)
	}
	if doc.Format != Format {
		return nil, fmt.Errorf("unsupported document format %q", doc.Format)
	}
	return &doc, nil
}

// ReadFile reads the document at path
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Circuit rebuilds a circuit from the document. Every stored index is
// validated and compared against a fresh build from its edge table, and every
// gid_to_range table against a fresh sort of its spikes.
func (d *Document) Circuit() (*circuit.Circuit, error) {
	c := circuit.New()
	for _, name := range sortedNames(d.Nodes) {
		nt := d.Nodes[name]
		if nt == nil {
			return nil, fmt.Errorf("node population %s: missing table", name)
		}
		if err := nt.Validate(); err != nil {
			return nil, err
		}
		c.Nodes[name] = nt
	}

	for _, name := range sortedNames(d.Edges) {
		ep := d.Edges[name]
		if ep == nil || ep.EdgeTable == nil {
			return nil, fmt.Errorf("edge population %s: missing edge table", name)
		}
		if err := ep.EdgeTable.Validate(); err != nil {
			return nil, err
		}

		var pair index.Pair
		for _, dir := range model.Directions {
			idx, err := checkIndex(c, ep, dir)
			if err != nil {
				return nil, fmt.Errorf("edge population %s: %w", name, err)
			}
			if dir == model.SourceToTarget {
				pair.SourceToTarget = idx
			} else {
				pair.TargetToSource = idx
			}
		}
		c.Edges[name] = &circuit.EdgePopulation{Table: ep.EdgeTable, Index: &pair, Assemblies: ep.Assemblies}
	}

	for _, name := range sortedNames(d.Spikes) {
		sp := d.Spikes[name]
		if sp == nil || sp.SpikeTable == nil {
			return nil, fmt.Errorf("spike population %s: missing spike table", name)
		}
		count := len(sp.GIDToRange)
		if n, err := c.NodeCount(sp.Population); err == nil {
			count = n
		}
		sorted, ranges, err := spikes.Index(sp.SpikeTable, count)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(sorted.GIDs, sp.GIDs) || !slices.Equal(sorted.Timestamps, sp.Timestamps) {
			return nil, fmt.Errorf("spike population %s: spikes are not sorted by gid and timestamp", name)
		}
		stored := make([]index.Range, len(sp.GIDToRange))
		for i, p := range sp.GIDToRange {
			stored[i] = index.Range{Start: p[0], End: p[1]}
		}
		if !slices.Equal(stored, ranges) {
			return nil, fmt.Errorf("spike population %s: gid_to_range does not match the spikes", name)
		}
		c.Spikes[name] = &circuit.SpikePopulation{Table: sp.SpikeTable, GIDToRange: stored}
	}
	return c, nil
}

func checkIndex(c *circuit.Circuit, ep *EdgePopulation, dir model.Direction) (*index.Index, error) {
	t, ok := ep.Indices[dir]
	if !ok || t == nil {
		return nil, fmt.Errorf("%s: missing index", dir)
	}
	stored := index.FromTables(dir, t.NodeIDToRanges, t.RangeToEdgeID)
	if err := index.Validate(stored, ep.Len()); err != nil {
		return nil, err
	}

	pop := ep.Source
	if dir == model.TargetToSource {
		pop = ep.Target
	}
	count, err := c.NodeCount(pop)
	if err != nil {
		// External populations may not be part of the document
		count = stored.NodeCount()
	}
	if count != stored.NodeCount() {
		return nil, fmt.Errorf("%s: index covers %d nodes, population %s has %d", dir, stored.NodeCount(), pop, count)
	}

	fresh, err := index.Build(ep.EdgeTable, dir, count)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(fresh.NodeIDToRanges, stored.NodeIDToRanges) || !slices.Equal(fresh.RangeToEdgeID, stored.RangeToEdgeID) {
		return nil, fmt.Errorf("%s: stored index differs from the edge table", dir)
	}
	return stored, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
