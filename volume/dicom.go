package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

type dicomSlice struct {
	path           string
	instanceNumber int
	sliceLocation  float64
	hasLocation    bool
	rows, cols     int
	slope          float64
	intercept      float64
	rowSpacingMM   float64
	colSpacingMM   float64
	thicknessMM    float64
	pixels         []int
}

// IsDICOMSeriesDir reports whether dir contains at least one .dcm file,
// which is how case discovery decides to treat a directory as a DICOM
// series.
func IsDICOMSeriesDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".dcm") {
			return true
		}
	}

	return false
}

// ReadDICOMSeries loads every .dcm file under dir as one volume. Slices are
// ordered by InstanceNumber, falling back to SliceLocation when instance
// numbers are absent or tied. Intensities pass through RescaleSlope and
// RescaleIntercept; spacing comes from PixelSpacing and SliceThickness.
func ReadDICOMSeries(dir string) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var slices []dicomSlice
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".dcm") {
			continue
		}

		s, err := readDICOMSlice(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		slices = append(slices, *s)
	}

	if len(slices) == 0 {
		return nil, pfx.Err(fmt.Errorf("%s contains no .dcm files", dir))
	}

	orderSlices(slices)

	rows, cols := slices[0].rows, slices[0].cols
	for _, s := range slices {
		if s.rows != rows || s.cols != cols {
			return nil, pfx.Err(fmt.Errorf("%s is %dx%d but the first slice of the series is %dx%d", s.path, s.rows, s.cols, rows, cols))
		}
	}

	out := NewVolume([3]int{cols, rows, len(slices)}, seriesSpacing(slices))
	for z, s := range slices {
		for j, stored := range s.pixels {
			out.SetAt(j%cols, j/cols, z, float64(stored)*s.slope+s.intercept)
		}
	}

	return out, nil
}

func orderSlices(slices []dicomSlice) {
	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].instanceNumber != slices[j].instanceNumber {
			return slices[i].instanceNumber < slices[j].instanceNumber
		}
		if slices[i].hasLocation && slices[j].hasLocation {
			return slices[i].sliceLocation < slices[j].sliceLocation
		}
		return slices[i].path < slices[j].path
	})
}

// seriesSpacing derives voxel spacing from the first slice: PixelSpacing is
// (row, column) order, so x spacing is the column entry. When SliceThickness
// is missing, the gap between the first two slice locations stands in.
func seriesSpacing(slices []dicomSlice) [3]float64 {
	first := slices[0]

	zSpacing := first.thicknessMM
	if zSpacing == 0 && len(slices) > 1 && first.hasLocation && slices[1].hasLocation {
		if gap := slices[1].sliceLocation - first.sliceLocation; gap != 0 {
			if gap < 0 {
				gap = -gap
			}
			zSpacing = gap
		}
	}

	return normalizeSpacing([3]float64{first.colSpacingMM, first.rowSpacingMM, zSpacing})
}

func readDICOMSlice(path string) (*dicomSlice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, pfx.Err(err)
	}

	p, err := dicom.NewParser(f, fi.Size(), nil)
	if err != nil {
		return nil, pfx.Err(err)
	}

	parsedData, err := safelyParseDICOM(p, dicom.ParseOptions{DropPixelData: false})
	if parsedData == nil || err != nil {
		return nil, pfx.Err(fmt.Errorf("error reading dicom %s: %v", path, err))
	}

	out := &dicomSlice{path: path, slope: 1}

	for _, elem := range parsedData.Elements {
		if elem.Tag == dicomtag.Rows {
			out.rows = int(elem.Value[0].(uint16))
		} else if elem.Tag == dicomtag.Columns {
			out.cols = int(elem.Value[0].(uint16))
		} else if elem.Tag == dicomtag.InstanceNumber {
			if n, err := strconv.Atoi(strings.TrimSpace(elem.Value[0].(string))); err == nil {
				out.instanceNumber = n
			}
		} else if elem.Tag == dicomtag.SliceLocation {
			if loc, err := strconv.ParseFloat(strings.TrimSpace(elem.Value[0].(string)), 64); err == nil {
				out.sliceLocation = loc
				out.hasLocation = true
			}
		} else if elem.Tag == dicomtag.RescaleSlope {
			if slope, err := strconv.ParseFloat(strings.TrimSpace(elem.Value[0].(string)), 64); err == nil && slope != 0 {
				out.slope = slope
			}
		} else if elem.Tag == dicomtag.RescaleIntercept {
			if intercept, err := strconv.ParseFloat(strings.TrimSpace(elem.Value[0].(string)), 64); err == nil {
				out.intercept = intercept
			}
		} else if elem.Tag == dicomtag.SliceThickness {
			if thickness, err := strconv.ParseFloat(strings.TrimSpace(elem.Value[0].(string)), 64); err == nil {
				out.thicknessMM = thickness
			}
		} else if elem.Tag == dicomtag.PixelSpacing {
			for k, v := range elem.Value {
				str, ok := v.(string)
				if !ok {
					continue
				}
				if k == 0 {
					out.rowSpacingMM, _ = strconv.ParseFloat(strings.TrimSpace(str), 64)
				} else if k == 1 {
					out.colSpacingMM, _ = strconv.ParseFloat(strings.TrimSpace(str), 64)
				}
			}
		}

		if elem.Tag == dicomtag.PixelData {
			data := elem.Value[0].(element.PixelDataInfo)

			for _, frame := range data.Frames {
				if frame.IsEncapsulated() {
					return nil, pfx.Err(fmt.Errorf("%s: encapsulated pixel data is not supported", path))
				}

				for j := 0; j < len(frame.NativeData.Data); j++ {
					out.pixels = append(out.pixels, frame.NativeData.Data[j][0])
				}
			}
		}
	}

	if out.rows == 0 || out.cols == 0 || len(out.pixels) != out.rows*out.cols {
		return nil, pfx.Err(fmt.Errorf("%s: %d pixel values do not fill %dx%d", path, len(out.pixels), out.rows, out.cols))
	}

	return out, nil
}

// safelyParseDICOM consumes panics emitted by the dicom library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyParseDICOM(p dicom.Parser, opts dicom.ParseOptions) (parsedData *element.DataSet, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	return p.Parse(opts)
}
