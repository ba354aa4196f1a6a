package volume

import (
	"fmt"

	"github.com/carbocation/pfx"
)

// Flip returns a copy of v mirrored along the given axis (0 = x, 1 = y,
// 2 = z). Spacing is unchanged.
func Flip(v *Volume, axis int) (*Volume, error) {
	if axis < 0 || axis > 2 {
		return nil, pfx.Err(fmt.Errorf("flip axis must be 0, 1, or 2; got %d", axis))
	}

	out := NewVolume(v.Dims, v.Spacing)
	nx, ny, nz := v.Dims[0], v.Dims[1], v.Dims[2]
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				sx, sy, sz := x, y, z
				switch axis {
				case 0:
					sx = nx - 1 - x
				case 1:
					sy = ny - 1 - y
				case 2:
					sz = nz - 1 - z
				}
				out.SetAt(x, y, z, v.At(sx, sy, sz))
			}
		}
	}

	return out, nil
}

// FlipAxes applies Flip once per listed axis, in order.
func FlipAxes(v *Volume, axes ...int) (*Volume, error) {
	out := v
	for _, axis := range axes {
		flipped, err := Flip(out, axis)
		if err != nil {
			return nil, err
		}
		out = flipped
	}

	return out, nil
}
