// Package dice scores the agreement between two segmentation label volumes.
// Scoring is per class over the union of the classes present in either
// volume, with class 0 treated as background, plus an unweighted mean
// aggregate. Score is a pure function of its inputs.
package dice

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fcrlab/segsweep/volume"
)

// ShapeMismatchError means the two volumes cannot be compared voxel by
// voxel. This indicates an upstream bug, not a data condition, and is never
// recorded as a failed experiment row.
type ShapeMismatchError struct {
	DimsA [3]int
	DimsB [3]int
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("label volumes have different shapes: %v vs %v", e.DimsA, e.DimsB)
}

// Result maps each class present in either input to its Dice score, along
// with the unweighted mean over those classes.
type Result struct {
	PerClass  map[int32]float64
	Aggregate float64
}

// Classes returns the scored class ids in ascending order.
func (r Result) Classes() []int32 {
	out := make([]int32, 0, len(r.PerClass))
	for class := range r.PerClass {
		out = append(out, class)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Score compares two label volumes of identical shape. When neither volume
// contains any foreground voxel there is nothing to disagree about, so the
// aggregate is 1.
func Score(a, b *volume.LabelVolume) (Result, error) {
	if a.Dims != b.Dims {
		return Result{}, ShapeMismatchError{DimsA: a.Dims, DimsB: b.Dims}
	}

	tallies := Tally(a.Data, b.Data)

	out := Result{PerClass: make(map[int32]float64, len(tallies))}
	if len(tallies) == 0 {
		out.Aggregate = 1

		return out, nil
	}

	scores := make([]float64, 0, len(tallies))
	for class, t := range tallies {
		s := t.Dice()
		out.PerClass[class] = s
		scores = append(scores, s)
	}
	out.Aggregate = stat.Mean(scores, nil)

	return out, nil
}
