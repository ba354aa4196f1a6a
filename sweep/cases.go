package sweep

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"

	"github.com/fcrlab/segsweep/volume"
)

// Case is one CT volume to process: a single NIfTI file, or a directory
// holding one DICOM series.
type Case struct {
	ID    string
	Path  string
	DICOM bool
}

// DiscoverCases walks root collecting *.nii and *.nii.gz files plus DICOM
// series directories, in sorted id order. The id is the path relative to
// root with separators flattened, so it stays a single results column and a
// usable directory name.
func DiscoverCases(root string) ([]Case, error) {
	var out []Case

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != root && volume.IsDICOMSeriesDir(path) {
				out = append(out, Case{ID: caseID(root, path), Path: path, DICOM: true})

				return filepath.SkipDir
			}

			return nil
		}

		if name := info.Name(); strings.HasSuffix(name, ".nii") || strings.HasSuffix(name, ".nii.gz") {
			out = append(out, Case{ID: caseID(root, path), Path: path})
		}

		return nil
	})
	if err != nil {
		return nil, pfx.Err(err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func caseID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	return strings.ReplaceAll(rel, string(filepath.Separator), "_")
}
