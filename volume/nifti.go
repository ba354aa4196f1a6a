package volume

import (
	"fmt"
	"math"
	"os"

	"github.com/carbocation/pfx"
	"github.com/henghuang/nifti"
)

// ReadNIfTI loads a .nii or .nii.gz file as an intensity volume. Only the
// first timepoint of a 4D file is read; voxel spacing comes from pixdim.
func ReadNIfTI(path string) (*Volume, error) {
	img, hdr, err := parseNIfTI(path)
	if err != nil {
		return nil, err
	}

	dims := img.GetDims()
	nx, ny, nz := dims[0], dims[1], dims[2]
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, pfx.Err(fmt.Errorf("%s: nonpositive dimensions %v", path, dims))
	}

	out := NewVolume([3]int{nx, ny, nz}, spacingFromHeader(hdr))
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				out.SetAt(x, y, z, float64(img.GetAt(x, y, z, 0)))
			}
		}
	}

	return out, nil
}

// ReadLabelNIfTI loads a .nii or .nii.gz file as a label volume, rounding
// voxel values to the nearest integer class id.
func ReadLabelNIfTI(path string) (*LabelVolume, error) {
	img, hdr, err := parseNIfTI(path)
	if err != nil {
		return nil, err
	}

	dims := img.GetDims()
	nx, ny, nz := dims[0], dims[1], dims[2]
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, pfx.Err(fmt.Errorf("%s: nonpositive dimensions %v", path, dims))
	}

	out := NewLabelVolume([3]int{nx, ny, nz}, spacingFromHeader(hdr))
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				out.SetAt(x, y, z, int32(math.Round(float64(img.GetAt(x, y, z, 0)))))
			}
		}
	}

	return out, nil
}

func parseNIfTI(path string) (nifti.Nifti1Image, nifti.Nifti1Header, error) {
	var img nifti.Nifti1Image
	var hdr nifti.Nifti1Header

	// The nifti library does not report missing files as errors, so check
	// first.
	if _, err := os.Stat(path); err != nil {
		return img, hdr, pfx.Err(err)
	}

	img, err := safelyLoadImage(path, true)
	if err != nil {
		return img, hdr, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	hdr, err = safelyLoadHeader(path)
	if err != nil {
		return img, hdr, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	return img, hdr, nil
}

func spacingFromHeader(hdr nifti.Nifti1Header) [3]float64 {
	var out [3]float64
	for i := range out {
		out[i] = float64(hdr.Pixdim[i+1])
	}

	return normalizeSpacing(out)
}

// safelyLoadImage consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyLoadImage(filename string, readData bool) (parsed nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsed.LoadImage(filename, readData)

	return
}

// safelyLoadHeader consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyLoadHeader(filename string) (parsed nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsed.LoadHeader(filename)

	return
}
