package volume

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carbocation/pfx"
)

// NIfTI-1 datatype codes.
const (
	niftiTypeInt16   int16 = 4
	niftiTypeFloat32 int16 = 16
)

// nifti1Header is the fixed 348-byte NIfTI-1 header, little-endian on disk.
// Field order and sizes must not change.
type nifti1Header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// WriteNIfTI writes an intensity volume as float32 NIfTI-1, gzipped when the
// path ends in .gz.
func WriteNIfTI(path string, v *Volume) error {
	if err := checkWriteShape(v.Dims, len(v.Data)); err != nil {
		return err
	}

	data := make([]float32, len(v.Data))
	for i, val := range v.Data {
		data[i] = float32(val)
	}

	return writeNIfTI1(path, v.Dims, v.Spacing, niftiTypeFloat32, 32, data)
}

// WriteLabelNIfTI writes a label volume as int16 NIfTI-1, gzipped when the
// path ends in .gz. Class ids above the int16 range are a caller bug and are
// reported as an error rather than silently truncated.
func WriteLabelNIfTI(path string, lv *LabelVolume) error {
	if err := checkWriteShape(lv.Dims, len(lv.Data)); err != nil {
		return err
	}

	data := make([]int16, len(lv.Data))
	for i, class := range lv.Data {
		if class < 0 || class > 32767 {
			return pfx.Err(fmt.Errorf("class id %d at voxel %d is outside the writable range", class, i))
		}
		data[i] = int16(class)
	}

	return writeNIfTI1(path, lv.Dims, lv.Spacing, niftiTypeInt16, 16, data)
}

func checkWriteShape(dims [3]int, n int) error {
	if want := dims[0] * dims[1] * dims[2]; want <= 0 || want != n {
		return pfx.Err(fmt.Errorf("dimensions %v do not match %d voxels of data", dims, n))
	}

	return nil
}

func writeNIfTI1(path string, dims [3]int, spacing [3]float64, datatype, bitpix int16, data interface{}) error {
	hdr := nifti1Header{
		SizeofHdr: 348,
		Regular:   'r',
		Datatype:  datatype,
		Bitpix:    bitpix,
		VoxOffset: 352,
		SclSlope:  1,
		XyztUnits: 2, // millimeters
		SformCode: 1, // scanner-anatomical
		Magic:     [4]byte{'n', '+', '1', 0},
	}

	hdr.Dim[0] = 3
	for i := range hdr.Dim[1:] {
		hdr.Dim[1+i] = 1
	}
	hdr.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		hdr.Dim[1+i] = int16(dims[i])
		hdr.Pixdim[1+i] = float32(spacing[i])
	}
	hdr.SrowX = [4]float32{float32(spacing[0]), 0, 0, 0}
	hdr.SrowY = [4]float32{0, float32(spacing[1]), 0, 0}
	hdr.SrowZ = [4]float32{0, 0, float32(spacing[2]), 0}
	copy(hdr.Descrip[:], "segsweep")

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return pfx.Err(err)
	}
	// Four zero bytes signal "no header extensions" and pad to vox_offset.
	if _, err := bw.Write([]byte{0, 0, 0, 0}); err != nil {
		return pfx.Err(err)
	}
	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return pfx.Err(err)
	}
	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
	}

	return pfx.Err(f.Close())
}
