package totalseg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/fcrlab/segsweep/volume"
)

// MaskLabel derives the organ name from a mask filename by stripping the
// NIfTI suffix, so "liver.nii.gz" becomes "liver".
func MaskLabel(filename string) string {
	return strings.TrimSuffix(strings.TrimSuffix(filename, ".gz"), ".nii")
}

// ListMasks returns the NIfTI mask filenames directly under maskDir, in
// sorted order.
func ListMasks(maskDir string) ([]string, error) {
	entries, err := os.ReadDir(maskDir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if name := entry.Name(); strings.HasSuffix(name, ".nii") || strings.HasSuffix(name, ".nii.gz") {
			out = append(out, name)
		}
	}

	return out, nil
}

// Combine merges the tool's per-organ binary masks under maskDir into one
// multi-class label volume. Class ids come from labels, which allocates ids
// for organs it has not seen before. Masks are applied in sorted filename
// order, so a voxel claimed by more than one organ keeps the last one's id.
func Combine(maskDir string, labels LabelTable) (*volume.LabelVolume, error) {
	maskFiles, err := ListMasks(maskDir)
	if err != nil {
		return nil, err
	}
	if len(maskFiles) == 0 {
		return nil, fmt.Errorf("no NIfTI masks found under %s", maskDir)
	}

	names := make([]string, 0, len(maskFiles))
	for _, maskFile := range maskFiles {
		names = append(names, MaskLabel(maskFile))
	}
	labels.Assign(names)

	var combined *volume.LabelVolume
	for _, maskFile := range maskFiles {
		mask, err := volume.ReadLabelNIfTI(filepath.Join(maskDir, maskFile))
		if err != nil {
			return nil, err
		}

		if combined == nil {
			combined = volume.NewLabelVolume(mask.Dims, mask.Spacing)
		} else if mask.Dims != combined.Dims {
			return nil, fmt.Errorf("mask %s has shape %v but earlier masks have %v", maskFile, mask.Dims, combined.Dims)
		}

		// Make sure every mask has a known id
		id, ok := labels.ID(MaskLabel(maskFile))
		if !ok {
			return nil, fmt.Errorf("no class id assigned for mask %s", maskFile)
		}

		for i, v := range mask.Data {
			if v > 0 {
				combined.Data[i] = id
			}
		}
	}

	return combined, nil
}
