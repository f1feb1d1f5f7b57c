// Package connectivity generates node and edge tables from explicit
// population sizes and connection patterns.
package connectivity

import (
	"fmt"

	"github.com/ritzau/circuit-index/pkg/model"
)

// Pattern names a connection rule.
type Pattern string

const (
	// Convergent gives every target Fan edges from sources (t+j+Offset) mod S.
	// Edges are grouped by target.
	Convergent Pattern = "convergent"
	// Divergent gives every source Fan edges to targets (s+j+Offset) mod T.
	// Edges are grouped by source.
	Divergent Pattern = "divergent"
	// Block partitions sources into T blocks of S/T nodes; target t receives
	// Fan edges cycling through its block. Requires S to be a multiple of T.
	Block Pattern = "block"
	// Explicit uses the literal Pairs list.
	Explicit Pattern = "explicit"
)

// NodePopulation describes a node population to generate.
type NodePopulation struct {
	Name   string `koanf:"name" json:"name"`
	Size   int    `koanf:"size" json:"size"`
	TypeID int32  `koanf:"type_id" json:"type_id"`
}

// Sections holds the constant section attributes written to every edge.
type Sections struct {
	AfferentSectionID  int32   `koanf:"afferent_section_id" json:"afferent_section_id"`
	AfferentSectionPos float32 `koanf:"afferent_section_pos" json:"afferent_section_pos"`
	EfferentSectionID  int32   `koanf:"efferent_section_id" json:"efferent_section_id"`
	EfferentSectionPos float32 `koanf:"efferent_section_pos" json:"efferent_section_pos"`
}

// Projection describes an edge population between two node populations.
type Projection struct {
	Name     string    `koanf:"name" json:"name"`
	Source   string    `koanf:"source" json:"source"`
	Target   string    `koanf:"target" json:"target"`
	Pattern  Pattern   `koanf:"pattern" json:"pattern"`
	Fan      int       `koanf:"fan" json:"fan"`
	Offset   int       `koanf:"offset" json:"offset"`
	TypeID   int32     `koanf:"type_id" json:"type_id"`
	Pairs    [][]int32 `koanf:"pairs" json:"pairs,omitempty"`
	Sections Sections  `koanf:"sections" json:"sections"`
}

// ParameterError reports an unusable generation parameter.
type ParameterError struct {
	Population string
	Field      string
	Reason     string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("population %s: invalid %s: %s", e.Population, e.Field, e.Reason)
}

// GenerateNodes builds the node table of p.
func GenerateNodes(p NodePopulation) (*model.NodeTable, error) {
	if p.Name == "" {
		return nil, &ParameterError{Population: "<unnamed>", Field: "name", Reason: "must not be empty"}
	}
	if p.Size < 0 {
		return nil, &ParameterError{Population: p.Name, Field: "size", Reason: fmt.Sprintf("%d is negative", p.Size)}
	}

	nt := &model.NodeTable{
		Name:           p.Name,
		NodeTypeID:     make([]int32, p.Size),
		NodeGroupID:    make([]int32, p.Size),
		NodeGroupIndex: make([]int32, p.Size),
	}
	for i := 0; i < p.Size; i++ {
		nt.NodeTypeID[i] = p.TypeID
		nt.NodeGroupIndex[i] = int32(i)
	}
	return nt, nil
}

// Generate builds the edge table of p between populations of the given sizes.
//
// Node ids of Explicit pairs are not range-checked here; the index builder
// reports them with the offending edge id.
func Generate(p Projection, sourceSize, targetSize int) (*model.EdgeTable, error) {
	if p.Name == "" {
		return nil, &ParameterError{Population: "<unnamed>", Field: "name", Reason: "must not be empty"}
	}
	if sourceSize < 0 || targetSize < 0 {
		return nil, &ParameterError{Population: p.Name, Field: "size",
			Reason: fmt.Sprintf("source %d / target %d", sourceSize, targetSize)}
	}
	if p.Pattern != Explicit && p.Fan < 0 {
		return nil, &ParameterError{Population: p.Name, Field: "fan", Reason: fmt.Sprintf("%d is negative", p.Fan)}
	}

	var et *model.EdgeTable
	switch p.Pattern {
	case Convergent:
		if targetSize > 0 && p.Fan > 0 && sourceSize == 0 {
			return nil, &ParameterError{Population: p.Name, Field: "source", Reason: "convergent edges need a non-empty source population"}
		}
		et = model.NewEdgeTable(p.Name, p.Source, p.Target, targetSize*p.Fan)
		for t := 0; t < targetSize; t++ {
			for j := 0; j < p.Fan; j++ {
				s := mod(t+j+p.Offset, sourceSize)
				et.Append(int32(s), int32(t), p.TypeID, 0, int32(et.Len()))
			}
		}

	case Divergent:
		if sourceSize > 0 && p.Fan > 0 && targetSize == 0 {
			return nil, &ParameterError{Population: p.Name, Field: "target", Reason: "divergent edges need a non-empty target population"}
		}
		et = model.NewEdgeTable(p.Name, p.Source, p.Target, sourceSize*p.Fan)
		for s := 0; s < sourceSize; s++ {
			for j := 0; j < p.Fan; j++ {
				t := mod(s+j+p.Offset, targetSize)
				et.Append(int32(s), int32(t), p.TypeID, 0, int32(et.Len()))
			}
		}

	case Block:
		if targetSize == 0 || sourceSize%targetSize != 0 || sourceSize == 0 {
			return nil, &ParameterError{Population: p.Name, Field: "size",
				Reason: fmt.Sprintf("block pattern needs source size (%d) to be a positive multiple of target size (%d)", sourceSize, targetSize)}
		}
		ratio := sourceSize / targetSize
		et = model.NewEdgeTable(p.Name, p.Source, p.Target, targetSize*p.Fan)
		for t := 0; t < targetSize; t++ {
			for j := 0; j < p.Fan; j++ {
				s := t*ratio + mod(j+p.Offset, ratio)
				et.Append(int32(s), int32(t), p.TypeID, 0, int32(et.Len()))
			}
		}

	case Explicit:
		et = model.NewEdgeTable(p.Name, p.Source, p.Target, len(p.Pairs))
		for i, pair := range p.Pairs {
			if len(pair) != 2 {
				return nil, &ParameterError{Population: p.Name, Field: "pairs",
					Reason: fmt.Sprintf("pair %d has %d elements, want 2", i, len(pair))}
			}
			et.Append(pair[0], pair[1], p.TypeID, 0, int32(i))
		}

	default:
		return nil, &ParameterError{Population: p.Name, Field: "pattern", Reason: fmt.Sprintf("unknown pattern %q", p.Pattern)}
	}

	et.Groups = []model.EdgeGroup{sectionGroup(et.Len(), p.Sections)}
	return et, nil
}

func sectionGroup(rows int, s Sections) model.EdgeGroup {
	g := model.EdgeGroup{
		ID:                 0,
		AfferentSectionID:  make([]int32, rows),
		AfferentSectionPos: make([]float32, rows),
		EfferentSectionID:  make([]int32, rows),
		EfferentSectionPos: make([]float32, rows),
	}
	for i := 0; i < rows; i++ {
		g.AfferentSectionID[i] = s.AfferentSectionID
		g.AfferentSectionPos[i] = s.AfferentSectionPos
		g.EfferentSectionID[i] = s.EfferentSectionID
		g.EfferentSectionPos[i] = s.EfferentSectionPos
	}
	return g
}

// mod returns a mod n in [0, n) for n > 0.
func mod(a, n int) int {
	if n == 0 {
		return 0
	}
	return ((a % n) + n) % n
}
