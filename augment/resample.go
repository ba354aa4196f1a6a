package augment

import (
	"math"

	"github.com/fcrlab/segsweep/volume"
)

// downsample simulates a coarser acquisition: Gaussian anti-alias prefilter
// with sigma (factor-1)/2 per axis, trilinear resample down to
// floor(dim/factor), then trilinear resample back up to the original grid so
// the result stays voxel-comparable with the unaugmented case. Factor 1 is
// the identity.
func downsample(v *volume.Volume, factor float64) *volume.Volume {
	if factor == 1 {
		return v.Clone()
	}

	filtered := v
	if sigma := (factor - 1) / 2; sigma > 0 {
		filtered = gaussianBlur(v, [3]float64{sigma, sigma, sigma})
	}

	var small [3]int
	for i, n := range v.Dims {
		small[i] = int(float64(n) / factor)
		if small[i] < 1 {
			small[i] = 1
		}
	}

	out := resampleTrilinear(resampleTrilinear(filtered, small), v.Dims)
	out.Spacing = v.Spacing

	return out
}

// resampleTrilinear maps the source onto a grid of the given dimensions,
// sampling with pixel-center alignment and interpolating linearly along each
// axis. Spacing is rescaled so the physical extent is unchanged.
func resampleTrilinear(v *volume.Volume, dims [3]int) *volume.Volume {
	var spacing [3]float64
	var scale [3]float64
	for i := range dims {
		scale[i] = float64(v.Dims[i]) / float64(dims[i])
		spacing[i] = v.Spacing[i] * scale[i]
	}

	out := volume.NewVolume(dims, spacing)
	nx, ny, nz := v.Dims[0], v.Dims[1], v.Dims[2]

	for z := 0; z < dims[2]; z++ {
		fz := sourceCoord(z, scale[2], nz)
		z0, z1, tz := interpNodes(fz, nz)

		for y := 0; y < dims[1]; y++ {
			fy := sourceCoord(y, scale[1], ny)
			y0, y1, ty := interpNodes(fy, ny)

			for x := 0; x < dims[0]; x++ {
				fx := sourceCoord(x, scale[0], nx)
				x0, x1, tx := interpNodes(fx, nx)

				c000 := v.At(x0, y0, z0)
				c100 := v.At(x1, y0, z0)
				c010 := v.At(x0, y1, z0)
				c110 := v.At(x1, y1, z0)
				c001 := v.At(x0, y0, z1)
				c101 := v.At(x1, y0, z1)
				c011 := v.At(x0, y1, z1)
				c111 := v.At(x1, y1, z1)

				c00 := c000 + tx*(c100-c000)
				c10 := c010 + tx*(c110-c010)
				c01 := c001 + tx*(c101-c001)
				c11 := c011 + tx*(c111-c011)

				c0 := c00 + ty*(c10-c00)
				c1 := c01 + ty*(c11-c01)

				out.SetAt(x, y, z, c0+tz*(c1-c0))
			}
		}
	}

	return out
}

// sourceCoord converts a destination index to a source-space coordinate with
// pixel-center alignment, clamped inside the source grid.
func sourceCoord(i int, scale float64, n int) float64 {
	f := (float64(i)+0.5)*scale - 0.5
	if f < 0 {
		return 0
	}
	if max := float64(n - 1); f > max {
		return max
	}

	return f
}

// interpNodes splits a source coordinate into its two bracketing indices and
// the interpolation weight toward the upper one.
func interpNodes(f float64, n int) (lo, hi int, t float64) {
	lo = int(math.Floor(f))
	if lo > n-1 {
		lo = n - 1
	}
	hi = lo + 1
	if hi > n-1 {
		hi = n - 1
	}

	return lo, hi, f - float64(lo)
}
