package volume

import (
	"math"
	"testing"
)

func TestVolumeIndexing(t *testing.T) {
	v := NewVolume([3]int{3, 4, 5}, [3]float64{1, 1, 1})

	if got, want := len(v.Data), 60; got != want {
		t.Fatalf("allocated %d voxels, expected %d", got, want)
	}

	// Each voxel gets a unique value; read it back by coordinate.
	i := 0.0
	for z := 0; z < 5; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 3; x++ {
				v.SetAt(x, y, z, i)
				i++
			}
		}
	}

	// x-fastest layout means the flat slice is already in write order
	for j, val := range v.Data {
		if float64(j) != val {
			t.Fatalf("voxel %d holds %f, expected %d", j, val, j)
		}
	}

	if got, want := v.At(2, 3, 4), 59.0; got != want {
		t.Errorf("At(2,3,4) = %f, expected %f", got, want)
	}
}

func TestVolumeCloneIsIndependent(t *testing.T) {
	v := NewVolume([3]int{2, 2, 2}, [3]float64{1, 2, 3})
	v.SetAt(1, 1, 1, 7)

	c := v.Clone()
	c.SetAt(1, 1, 1, 9)

	if got := v.At(1, 1, 1); got != 7 {
		t.Errorf("mutating a clone changed the original: got %f", got)
	}
	if c.Spacing != v.Spacing {
		t.Errorf("clone spacing %v differs from original %v", c.Spacing, v.Spacing)
	}
}

func TestVolumeMax(t *testing.T) {
	v := NewVolume([3]int{2, 1, 1}, [3]float64{1, 1, 1})
	v.SetAt(0, 0, 0, -10)
	v.SetAt(1, 0, 0, -2)

	if got := v.Max(); got != -2 {
		t.Errorf("Max() = %f, expected -2", got)
	}
}

func TestNormalizeSpacing(t *testing.T) {
	for _, v := range []struct {
		in   [3]float64
		want [3]float64
	}{
		{[3]float64{1.5, 0.7, 3}, [3]float64{1.5, 0.7, 3}},
		{[3]float64{0, 1, 1}, [3]float64{1, 1, 1}},
		{[3]float64{-2, 1, 1}, [3]float64{2, 1, 1}},
		{[3]float64{math.NaN(), 1, math.Inf(1)}, [3]float64{1, 1, 1}},
	} {
		if got := normalizeSpacing(v.in); got != v.want {
			t.Errorf("normalizeSpacing(%v) = %v, expected %v", v.in, got, v.want)
		}
	}
}

func TestFlip(t *testing.T) {
	v := NewVolume([3]int{2, 2, 2}, [3]float64{1, 1, 1})
	i := 0.0
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				v.SetAt(x, y, z, i)
				i++
			}
		}
	}

	flipped, err := Flip(v, 0)
	if err != nil {
		t.Fatalf("Flip along x failed: %v", err)
	}
	if got, want := flipped.At(0, 0, 0), v.At(1, 0, 0); got != want {
		t.Errorf("x-flip voxel (0,0,0) = %f, expected %f", got, want)
	}
	if got, want := flipped.At(1, 1, 1), v.At(0, 1, 1); got != want {
		t.Errorf("x-flip voxel (1,1,1) = %f, expected %f", got, want)
	}

	// Flipping twice along the same axis restores the input.
	restored, err := Flip(flipped, 0)
	if err != nil {
		t.Fatalf("second flip failed: %v", err)
	}
	for j := range v.Data {
		if restored.Data[j] != v.Data[j] {
			t.Fatalf("double flip changed voxel %d: %f vs %f", j, restored.Data[j], v.Data[j])
		}
	}

	if _, err := Flip(v, 3); err == nil {
		t.Errorf("expected an error for axis 3")
	}
}

func TestFlipAxesComposes(t *testing.T) {
	v := NewVolume([3]int{2, 3, 2}, [3]float64{1, 1, 1})
	for j := range v.Data {
		v.Data[j] = float64(j)
	}

	xy, err := FlipAxes(v, 0, 1)
	if err != nil {
		t.Fatalf("FlipAxes failed: %v", err)
	}

	if got, want := xy.At(0, 0, 0), v.At(1, 2, 0); got != want {
		t.Errorf("xy-flip voxel (0,0,0) = %f, expected %f", got, want)
	}
	if got, want := xy.At(1, 2, 1), v.At(0, 0, 1); got != want {
		t.Errorf("xy-flip voxel (1,2,1) = %f, expected %f", got, want)
	}
}
