// segment runs TotalSegmentator over every CT volume under CT_PATH and
// folds each run's per-organ masks into a single multi-class labels file.
// Unlike segsweep it applies no degradation; it is the one-shot batch
// segmentation path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/fcrlab/segsweep/compileinfoprint"
	"github.com/fcrlab/segsweep/segconfig"
	"github.com/fcrlab/segsweep/sweep"
	"github.com/fcrlab/segsweep/totalseg"
	"github.com/fcrlab/segsweep/volume"
)

func main() {
	var configPath, binary string

	flag.StringVar(&configPath, "config", segconfig.DefaultPath, "Path to the YAML configuration.")
	flag.StringVar(&binary, "binary", "", "TotalSegmentator executable. Looked up on PATH when empty.")
	flag.Parse()

	cfg, err := segconfig.Load(configPath)
	if err != nil {
		log.Fatalln(err)
	}

	runner, err := totalseg.NewRunner(binary, cfg.Task, cfg.Fast, cfg.Timeout())
	if err != nil {
		log.Fatalln(err)
	}

	cases, err := sweep.DiscoverCases(cfg.CTPath)
	if err != nil {
		log.Fatalln(err)
	}
	if len(cases) == 0 {
		log.Fatalln("Found no CT volumes under", cfg.CTPath)
	}
	log.Println("Found", len(cases), "CT volumes under", cfg.CTPath)

	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		log.Fatalln(err)
	}

	failed := 0
	for i, c := range cases {
		log.Println("Segmenting", i+1, "of", len(cases), ":", c.ID)
		if err := segmentCase(runner, cfg.OutputDirectory, c); err != nil {
			log.Println(c.ID, "failed:", err)
			failed++
		}
	}

	log.Println("Done:", len(cases)-failed, "segmented,", failed, "failed")
}

func segmentCase(runner *totalseg.Runner, outRoot string, c sweep.Case) error {
	outDir := filepath.Join(outRoot, outputDirName(c.Path))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	input, niftiPath, err := loadCase(c, outDir)
	if err != nil {
		return err
	}

	labels := totalseg.NewLabelTable()
	if _, err := runner.SegmentCombined(context.Background(), niftiPath, outDir, input.Dims, labels); err != nil {
		return err
	}

	return labels.Save(filepath.Join(outDir, "labels.json"))
}

// loadCase yields the volume along with a NIfTI path the segmentator can
// consume. DICOM series are converted into the output directory first.
func loadCase(c sweep.Case, outDir string) (*volume.Volume, string, error) {
	if !c.DICOM {
		v, err := volume.ReadNIfTI(c.Path)
		return v, c.Path, err
	}

	v, err := volume.ReadDICOMSeries(c.Path)
	if err != nil {
		return nil, "", err
	}

	niftiPath := filepath.Join(outDir, "input.nii.gz")
	if err := volume.WriteNIfTI(niftiPath, v); err != nil {
		return nil, "", err
	}

	return v, niftiPath, nil
}

// outputDirName stamps each run so repeated segmentations of the same
// volume stay distinguishable.
func outputDirName(path string) string {
	stem := filepath.Base(path)
	stem = strings.TrimSuffix(stem, ".gz")
	stem = strings.TrimSuffix(stem, ".nii")
	parent := filepath.Base(filepath.Dir(path))

	return fmt.Sprintf("TotalSegmentator_%s_%s_seg_%s", parent, stem, time.Now().Format("20060102_150405"))
}
