package model

import "fmt"

// Direction selects which endpoint of an edge is used as the grouping key of
// an adjacency index.
type Direction string

const (
	SourceToTarget Direction = "source_to_target" // Indexed by source_node_id
	TargetToSource Direction = "target_to_source" // Indexed by target_node_id
)

// Directions lists both index directions in container order.
var Directions = []Direction{SourceToTarget, TargetToSource}

// ParseDirection parses a direction name as used in the container paths.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case SourceToTarget, TargetToSource:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// NodeTable is a dense, zero-based node population.
type NodeTable struct {
	Name           string  `json:"name"`
	NodeTypeID     []int32 `json:"node_type_id"`
	NodeGroupID    []int32 `json:"node_group_id"`
	NodeGroupIndex []int32 `json:"node_group_index"`
}

// Size returns the number of nodes in the population.
func (n *NodeTable) Size() int {
	return len(n.NodeTypeID)
}

// Validate checks that all columns have the same length.
func (n *NodeTable) Validate() error {
	size := len(n.NodeTypeID)
	if len(n.NodeGroupID) != size || len(n.NodeGroupIndex) != size {
		return fmt.Errorf("node population %s: column length mismatch (type=%d group=%d index=%d)",
			n.Name, size, len(n.NodeGroupID), len(n.NodeGroupIndex))
	}
	return nil
}

// EdgeGroup holds per-edge attribute columns shared by edges with the same
// edge_group_id. Rows are addressed by edge_group_index.
type EdgeGroup struct {
	ID                 int32     `json:"id"`
	AfferentSectionID  []int32   `json:"afferent_section_id"`
	AfferentSectionPos []float32 `json:"afferent_section_pos"`
	EfferentSectionID  []int32   `json:"efferent_section_id"`
	EfferentSectionPos []float32 `json:"efferent_section_pos"`
}

// Len returns the number of rows in the group.
func (g *EdgeGroup) Len() int {
	return len(g.AfferentSectionID)
}

// EdgeTable is an append-only edge population. The edge id of an edge is its
// row index.
type EdgeTable struct {
	Name   string `json:"name"`
	Source string `json:"source"` // Source node population name
	Target string `json:"target"` // Target node population name

	SourceNodeID   []int32 `json:"source_node_id"`
	TargetNodeID   []int32 `json:"target_node_id"`
	EdgeTypeID     []int32 `json:"edge_type_id"`
	EdgeGroupID    []int32 `json:"edge_group_id"`
	EdgeGroupIndex []int32 `json:"edge_group_index"`

	Groups []EdgeGroup `json:"groups,omitempty"`
}

// NewEdgeTable creates an empty edge table with room for capacity edges.
func NewEdgeTable(name, source, target string, capacity int) *EdgeTable {
	return &EdgeTable{
		Name:           name,
		Source:         source,
		Target:         target,
		SourceNodeID:   make([]int32, 0, capacity),
		TargetNodeID:   make([]int32, 0, capacity),
		EdgeTypeID:     make([]int32, 0, capacity),
		EdgeGroupID:    make([]int32, 0, capacity),
		EdgeGroupIndex: make([]int32, 0, capacity),
	}
}

// Append adds an edge and returns its edge id.
func (t *EdgeTable) Append(source, target, typeID, groupID, groupIndex int32) int {
	t.SourceNodeID = append(t.SourceNodeID, source)
	t.TargetNodeID = append(t.TargetNodeID, target)
	t.EdgeTypeID = append(t.EdgeTypeID, typeID)
	t.EdgeGroupID = append(t.EdgeGroupID, groupID)
	t.EdgeGroupIndex = append(t.EdgeGroupIndex, groupIndex)
	return len(t.SourceNodeID) - 1
}

// Len returns the number of edges.
func (t *EdgeTable) Len() int {
	return len(t.SourceNodeID)
}

// IsRecurrent reports whether sources and targets live in the same node population.
func (t *EdgeTable) IsRecurrent() bool {
	return t.Source != "" && t.Source == t.Target
}

// NodeID returns the node id selected by dir for the given edge.
func (t *EdgeTable) NodeID(dir Direction, edgeID int) int32 {
	if dir == TargetToSource {
		return t.TargetNodeID[edgeID]
	}
	return t.SourceNodeID[edgeID]
}

// Column returns the node id column selected by dir.
func (t *EdgeTable) Column(dir Direction) []int32 {
	if dir == TargetToSource {
		return t.TargetNodeID
	}
	return t.SourceNodeID
}

// Group returns the edge group with the given id.
func (t *EdgeTable) Group(id int32) (*EdgeGroup, bool) {
	for i := range t.Groups {
		if t.Groups[i].ID == id {
			return &t.Groups[i], true
		}
	}
	return nil, false
}

// Validate checks column lengths and that every edge resolves to a group row.
func (t *EdgeTable) Validate() error {
	n := len(t.SourceNodeID)
	if len(t.TargetNodeID) != n || len(t.EdgeTypeID) != n ||
		len(t.EdgeGroupID) != n || len(t.EdgeGroupIndex) != n {
		return fmt.Errorf("edge population %s: column length mismatch (source=%d target=%d type=%d group=%d index=%d)",
			t.Name, n, len(t.TargetNodeID), len(t.EdgeTypeID), len(t.EdgeGroupID), len(t.EdgeGroupIndex))
	}

	for _, g := range t.Groups {
		rows := g.Len()
		if len(g.AfferentSectionPos) != rows || len(g.EfferentSectionID) != rows || len(g.EfferentSectionPos) != rows {
			return fmt.Errorf("edge population %s: group %d column length mismatch", t.Name, g.ID)
		}
	}

	// Tables without groups carry no attributes; nothing to resolve.
	if len(t.Groups) == 0 {
		return nil
	}

	for i := 0; i < n; i++ {
		g, ok := t.Group(t.EdgeGroupID[i])
		if !ok {
			return fmt.Errorf("edge population %s: edge %d references unknown group %d", t.Name, i, t.EdgeGroupID[i])
		}
		if idx := t.EdgeGroupIndex[i]; idx < 0 || int(idx) >= g.Len() {
			return fmt.Errorf("edge population %s: edge %d group index %d outside group %d (size %d)",
				t.Name, i, idx, g.ID, g.Len())
		}
	}
	return nil
}

// SpikeTable is a spike train population. Rows are (gid, timestamp) pairs.
type SpikeTable struct {
	Name       string    `json:"name"`
	Population string    `json:"population"` // Node population the gids refer to
	GIDs       []int32   `json:"gids"`
	Timestamps []float32 `json:"timestamps"`
}

// Len returns the number of spikes.
func (s *SpikeTable) Len() int {
	return len(s.GIDs)
}

// Validate checks that both columns have the same length.
func (s *SpikeTable) Validate() error {
	if len(s.GIDs) != len(s.Timestamps) {
		return fmt.Errorf("spike population %s: column length mismatch (gids=%d timestamps=%d)",
			s.Name, len(s.GIDs), len(s.Timestamps))
	}
	return nil
}
