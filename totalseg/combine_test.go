package totalseg

import (
	"path/filepath"
	"testing"

	"github.com/fcrlab/segsweep/volume"
)

func writeMask(t *testing.T, path string, dims [3]int, voxels ...[3]int) {
	t.Helper()

	mask := volume.NewLabelVolume(dims, [3]float64{1, 1, 1})
	for _, at := range voxels {
		mask.SetAt(at[0], at[1], at[2], 1)
	}
	if err := volume.WriteLabelNIfTI(path, mask); err != nil {
		t.Fatalf("writing mask %s: %v", path, err)
	}
}

func TestCombineMergesMasksInSortedOrder(t *testing.T) {
	maskDir := t.TempDir()
	dims := [3]int{3, 3, 2}

	// Overlap at (1,0,0): liver sorts after aorta, so its id wins there.
	writeMask(t, filepath.Join(maskDir, "aorta.nii.gz"), dims, [3]int{0, 0, 0}, [3]int{1, 0, 0})
	writeMask(t, filepath.Join(maskDir, "liver.nii.gz"), dims, [3]int{1, 0, 0}, [3]int{2, 2, 1})

	labels := NewLabelTable()
	combined, err := Combine(maskDir, labels)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	if combined.Dims != dims {
		t.Fatalf("combined shape %v, expected %v", combined.Dims, dims)
	}
	if labels["aorta"] != 1 || labels["liver"] != 2 {
		t.Fatalf("labels assigned %v, expected aorta=1 liver=2", labels)
	}

	for _, v := range []struct {
		at   [3]int
		want int32
	}{
		{[3]int{0, 0, 0}, 1},
		{[3]int{1, 0, 0}, 2},
		{[3]int{2, 2, 1}, 2},
		{[3]int{1, 1, 0}, 0},
	} {
		if got := combined.At(v.at[0], v.at[1], v.at[2]); got != v.want {
			t.Errorf("voxel %v = %d, expected %d", v.at, got, v.want)
		}
	}
}

func TestCombineKeepsPreassignedIDs(t *testing.T) {
	maskDir := t.TempDir()
	dims := [3]int{2, 2, 2}

	writeMask(t, filepath.Join(maskDir, "aorta.nii.gz"), dims, [3]int{0, 0, 0})
	writeMask(t, filepath.Join(maskDir, "liver.nii.gz"), dims, [3]int{1, 1, 1})

	labels := LabelTable{"liver": 5}
	combined, err := Combine(maskDir, labels)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	if labels["liver"] != 5 {
		t.Errorf("liver renumbered to %d", labels["liver"])
	}
	if labels["aorta"] != 6 {
		t.Errorf("aorta assigned %d, expected 6", labels["aorta"])
	}
	if got := combined.At(1, 1, 1); got != 5 {
		t.Errorf("liver voxel = %d, expected 5", got)
	}
}

func TestCombineRejectsMismatchedMaskShapes(t *testing.T) {
	maskDir := t.TempDir()

	writeMask(t, filepath.Join(maskDir, "aorta.nii.gz"), [3]int{3, 3, 3}, [3]int{0, 0, 0})
	writeMask(t, filepath.Join(maskDir, "liver.nii.gz"), [3]int{3, 3, 2}, [3]int{0, 0, 0})

	if _, err := Combine(maskDir, NewLabelTable()); err == nil {
		t.Error("expected an error for masks with different shapes")
	}
}

func TestCombineEmptyDirFails(t *testing.T) {
	if _, err := Combine(t.TempDir(), NewLabelTable()); err == nil {
		t.Error("expected an error for a directory without masks")
	}
}
