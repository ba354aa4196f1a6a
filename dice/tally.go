package dice

// assignment is the pair of class ids two label volumes gave one voxel.
type assignment struct {
	A int32
	B int32
}

// ClassTally accumulates the per-class voxel counts that overlap metrics are
// computed from.
type ClassTally struct {
	CountA int64
	CountB int64
	Agreed int64
}

// Dice is 2*|A∩B| / (|A|+|B|). A class with no voxels in either volume
// cannot produce false positives or negatives, so it scores 1 by convention.
func (t ClassTally) Dice() float64 {
	denom := float64(t.CountA + t.CountB)
	if denom == 0 {
		return 1
	}

	return float64(2*t.Agreed) / denom
}

func (t ClassTally) Jaccard() float64 {
	d := t.Dice()

	return d / (2 - d)
}

// Tally walks both volumes once and returns counts for every nonzero class
// present in either. Callers must have checked that dims match.
func Tally(a, b []int32) map[int32]ClassTally {
	counts := make(map[assignment]int64)
	for i := range a {
		counts[assignment{A: a[i], B: b[i]}]++
	}

	out := make(map[int32]ClassTally)
	for pair, n := range counts {
		if pair.A != 0 {
			t := out[pair.A]
			t.CountA += n
			if pair.A == pair.B {
				t.Agreed += n
			}
			out[pair.A] = t
		}
		if pair.B != 0 {
			t := out[pair.B]
			t.CountB += n
			out[pair.B] = t
		}
	}

	return out
}
