package detection

import (
	"cmp"
	"slices"

	"github.com/handscan/handscan/internal/inference"
	"github.com/handscan/handscan/internal/tiles"
)

// candidate is a box whose label has already been mapped to a tile code.
type candidate struct {
	code tiles.Code
	box  inference.Box
}

// filterByConfidence drops candidates whose confidence is strictly below threshold.
func filterByConfidence(in []candidate, threshold float64) []candidate {
	out := make([]candidate, 0, len(in))
	for _, c := range in {
		if c.box.Confidence >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// suppress runs class-agnostic greedy non-maximum suppression. Candidates
// are visited by confidence descending with ties kept in input order; a
// candidate is dropped when its IoU with any kept box exceeds iouThreshold.
func suppress(in []candidate, iouThreshold float64) []candidate {
	sorted := slices.Clone(in)
	slices.SortStableFunc(sorted, func(a, b candidate) int {
		return cmp.Compare(b.box.Confidence, a.box.Confidence)
	})

	kept := make([]candidate, 0, len(sorted))
	for _, c := range sorted {
		overlaps := slices.ContainsFunc(kept, func(k candidate) bool {
			return iou(c.box, k.box) > iouThreshold
		})
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

// iou is the intersection over union of two boxes, 0 for a non-positive union.
func iou(a, b inference.Box) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	inter := max(0, ix2-ix1) * max(0, iy2-iy1)
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b inference.Box) float64 {
	return max(0, b.X2-b.X1) * max(0, b.Y2-b.Y1)
}
