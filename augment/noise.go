package augment

import "github.com/fcrlab/segsweep/volume"

// addNoise adds independent draws from N(0, sigma) to every voxel. The
// output range is deliberately not clamped; downstream consumers re-normalize
// if they care.
func (a *Augmenter) addNoise(v *volume.Volume, sigma float64) *volume.Volume {
	out := v.Clone()
	if sigma == 0 {
		return out
	}

	for i := range out.Data {
		out.Data[i] += a.rng.NormFloat64() * sigma
	}

	return out
}
