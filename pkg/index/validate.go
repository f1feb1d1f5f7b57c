package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Validate checks an index against an edge table of edgeCount rows.
//
// Node ranges must partition the range-index space in ascending node order,
// every edge span must be non-empty and lie inside [0, edgeCount), no edge
// may be reachable twice, and the spans must sum to edgeCount.
func Validate(idx *Index, edgeCount int) error {
	numRanges := int32(len(idx.RangeToEdgeID))

	prevEnd := int32(0)
	for node, r := range idx.NodeIDToRanges {
		if r.Start < 0 || r.End < r.Start || r.End > numRanges {
			return fmt.Errorf("%w: %s: node %d range [%d, %d) outside [0, %d]",
				ErrMalformedIndex, idx.Direction, node, r.Start, r.End, numRanges)
		}
		if r.Start != prevEnd {
			return fmt.Errorf("%w: %s: node %d range starts at %d, previous node ended at %d",
				ErrMalformedIndex, idx.Direction, node, r.Start, prevEnd)
		}
		prevEnd = r.End
	}
	if prevEnd != numRanges {
		return fmt.Errorf("%w: %s: range entries [%d, %d) not reachable from any node",
			ErrMalformedIndex, idx.Direction, prevEnd, numRanges)
	}

	covered := roaring.New()
	total := 0
	for i, r := range idx.RangeToEdgeID {
		if r.Start < 0 || r.End < r.Start || int(r.End) > edgeCount {
			return fmt.Errorf("%w: %s: range %d edge span [%d, %d) outside [0, %d]",
				ErrMalformedIndex, idx.Direction, i, r.Start, r.End, edgeCount)
		}
		if r.Empty() {
			return fmt.Errorf("%w: %s: range %d has an empty edge span at %d",
				ErrMalformedIndex, idx.Direction, i, r.Start)
		}
		if covered.IntersectsWithInterval(uint64(r.Start), uint64(r.End)) {
			for id := r.Start; id < r.End; id++ {
				if covered.Contains(uint32(id)) {
					return &CoverageError{Direction: idx.Direction, EdgeID: int(id), Range: i}
				}
			}
		}
		covered.AddRange(uint64(r.Start), uint64(r.End))
		total += r.Len()
	}

	if total != edgeCount {
		return &InconsistentEdgeCountError{Direction: idx.Direction, Expected: edgeCount, Actual: total}
	}
	return nil
}
