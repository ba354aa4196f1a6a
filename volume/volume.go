// Package volume holds the in-memory representation of 3D image volumes and
// segmentation label volumes, along with the NIfTI and DICOM codecs that move
// them in and out of files. Voxel data is stored in a flat slice, x-fastest,
// matching the on-disk ordering of NIfTI. Transform functions return new
// volumes; nothing in this codebase mutates a volume after it has been handed
// out, so a baseline stays comparable across experiment branches.
package volume

import (
	"fmt"
	"math"
)

// Volume is a 3D grid of intensity values with millimeter voxel spacing along
// x, y, and z.
type Volume struct {
	Dims    [3]int
	Spacing [3]float64
	Data    []float64
}

// NewVolume allocates a zero-filled volume. Nonpositive dimensions are the
// caller's bug and panic; nonpositive spacing entries are replaced with 1mm.
func NewVolume(dims [3]int, spacing [3]float64) *Volume {
	n := dims[0] * dims[1] * dims[2]
	if n <= 0 {
		panic(fmt.Sprintf("volume: invalid dimensions %v", dims))
	}

	return &Volume{
		Dims:    dims,
		Spacing: normalizeSpacing(spacing),
		Data:    make([]float64, n),
	}
}

func (v *Volume) index(x, y, z int) int {
	return x + v.Dims[0]*(y+v.Dims[1]*z)
}

func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.index(x, y, z)]
}

func (v *Volume) SetAt(x, y, z int, value float64) {
	v.Data[v.index(x, y, z)] = value
}

func (v *Volume) NVoxels() int {
	return v.Dims[0] * v.Dims[1] * v.Dims[2]
}

// Clone returns a deep copy sharing no storage with v.
func (v *Volume) Clone() *Volume {
	out := &Volume{Dims: v.Dims, Spacing: v.Spacing, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)

	return out
}

// Max returns the largest intensity in the volume.
func (v *Volume) Max() float64 {
	max := math.Inf(-1)
	for _, val := range v.Data {
		if val > max {
			max = val
		}
	}

	return max
}

// LabelVolume is a 3D grid of integer class identifiers with the same
// geometry carriage as Volume. 0 is background.
type LabelVolume struct {
	Dims    [3]int
	Spacing [3]float64
	Data    []int32
}

func NewLabelVolume(dims [3]int, spacing [3]float64) *LabelVolume {
	n := dims[0] * dims[1] * dims[2]
	if n <= 0 {
		panic(fmt.Sprintf("volume: invalid dimensions %v", dims))
	}

	return &LabelVolume{
		Dims:    dims,
		Spacing: normalizeSpacing(spacing),
		Data:    make([]int32, n),
	}
}

func (lv *LabelVolume) index(x, y, z int) int {
	return x + lv.Dims[0]*(y+lv.Dims[1]*z)
}

func (lv *LabelVolume) At(x, y, z int) int32 {
	return lv.Data[lv.index(x, y, z)]
}

func (lv *LabelVolume) SetAt(x, y, z int, class int32) {
	lv.Data[lv.index(x, y, z)] = class
}

func (lv *LabelVolume) NVoxels() int {
	return lv.Dims[0] * lv.Dims[1] * lv.Dims[2]
}

func (lv *LabelVolume) Clone() *LabelVolume {
	out := &LabelVolume{Dims: lv.Dims, Spacing: lv.Spacing, Data: make([]int32, len(lv.Data))}
	copy(out.Data, lv.Data)

	return out
}

func normalizeSpacing(spacing [3]float64) [3]float64 {
	out := spacing
	for i, s := range out {
		if s = math.Abs(s); s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s) {
			out[i] = s
		} else {
			out[i] = 1
		}
	}

	return out
}
