package index

import (
	"errors"
	"fmt"

	"github.com/ritzau/circuit-index/pkg/model"
)

var (
	// ErrTooManyEdges is returned when an edge table cannot be addressed with int32 edge ids.
	ErrTooManyEdges = errors.New("edge count exceeds int32 range")

	// ErrMalformedIndex is wrapped by structural errors found by Validate.
	ErrMalformedIndex = errors.New("malformed index")
)

// OutOfRangeError indicates a node id outside its population.
//
// EdgeID is the offending edge row, or -1 when the node id came from a query.
type OutOfRangeError struct {
	Direction model.Direction
	EdgeID    int
	NodeID    int64
	NodeCount int
}

func (e *OutOfRangeError) Error() string {
	if e.EdgeID < 0 {
		return fmt.Sprintf("%s: node %d outside [0, %d)", e.Direction, e.NodeID, e.NodeCount)
	}
	return fmt.Sprintf("%s: edge %d references node %d outside [0, %d)", e.Direction, e.EdgeID, e.NodeID, e.NodeCount)
}

// InconsistentEdgeCountError indicates that the spans of an index do not sum
// to the number of edges.
type InconsistentEdgeCountError struct {
	Direction model.Direction
	Expected  int
	Actual    int
}

func (e *InconsistentEdgeCountError) Error() string {
	return fmt.Sprintf("%s: ranges span %d edges, expected %d", e.Direction, e.Actual, e.Expected)
}

// CoverageError indicates an edge id reachable through more than one range entry.
type CoverageError struct {
	Direction model.Direction
	EdgeID    int
	Range     int // Range entry that covered EdgeID a second time
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("%s: edge %d covered again by range %d", e.Direction, e.EdgeID, e.Range)
}
