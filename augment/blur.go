package augment

import (
	"math"

	"github.com/fcrlab/segsweep/volume"
)

// gaussianBlur convolves the volume with a separable Gaussian, one pass per
// axis with sigma > 0. Boundary policy is edge replication, which is part of
// the scoring contract: scores near volume borders depend on it.
func gaussianBlur(v *volume.Volume, sigmas [3]float64) *volume.Volume {
	out := v.Clone()
	for axis, sigma := range sigmas {
		if sigma <= 0 {
			continue
		}

		kernel := gaussianKernel(sigma)
		if len(kernel) == 1 {
			continue
		}
		out = convolveAxis(out, kernel, axis)
	}

	return out
}

// gaussianKernel builds a normalized 1D kernel truncated at 4 sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	return kernel
}

func convolveAxis(v *volume.Volume, kernel []float64, axis int) *volume.Volume {
	radius := len(kernel) / 2
	nx, ny, nz := v.Dims[0], v.Dims[1], v.Dims[2]
	out := volume.NewVolume(v.Dims, v.Spacing)

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				acc := 0.0
				for k := -radius; k <= radius; k++ {
					sx, sy, sz := x, y, z
					switch axis {
					case 0:
						sx = clampIndex(x+k, nx)
					case 1:
						sy = clampIndex(y+k, ny)
					case 2:
						sz = clampIndex(z+k, nz)
					}
					acc += kernel[k+radius] * v.At(sx, sy, sz)
				}
				out.SetAt(x, y, z, acc)
			}
		}
	}

	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}

	return i
}
