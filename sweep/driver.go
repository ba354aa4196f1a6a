// Package sweep runs segmentation robustness experiments: it discovers CT
// cases, establishes an unaugmented baseline segmentation per case, then
// re-segments augmented variants across a parameter grid and scores each
// against the baseline.
package sweep

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fcrlab/segsweep/augment"
	"github.com/fcrlab/segsweep/dice"
	"github.com/fcrlab/segsweep/totalseg"
	"github.com/fcrlab/segsweep/volume"
)

// BaselineKind marks the row holding a case's unaugmented segmentation.
const BaselineKind = "baseline"

// Segmenter is the slice of totalseg.Runner the driver needs, kept narrow
// so tests can stand in for the real tool.
type Segmenter interface {
	SegmentCombined(ctx context.Context, niftiPath, outDir string, inputDims [3]int, labels totalseg.LabelTable) (*volume.LabelVolume, error)
}

// Driver runs the sweep. Per case: one baseline segmentation, then one
// variant per grid point, each scored against that baseline. Operational
// failures become failed rows; a failed baseline skips the case's variants
// entirely. Cases are independent of one another.
type Driver struct {
	Segmenter   Segmenter
	Grid        []GridPoint
	OutDir      string
	Seed        int64
	Concurrency int

	Results *Writer
	DB      *DB // optional mirror
}

// Run processes every case and reports how many rows were recorded as
// failed. The error is non-nil only for cancellation and for caller bugs
// (invalid settings, incomparable volumes); per-case trouble never stops
// the sweep.
func (d *Driver) Run(ctx context.Context, cases []Case) (int, error) {
	concurrency := d.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)

	sem := make(chan bool, concurrency)
	for i, c := range cases {
		mu.Lock()
		halted := firstErr != nil
		mu.Unlock()
		if halted || ctx.Err() != nil {
			break
		}

		sem <- true
		go func(caseIndex int, c Case) {
			defer func() { <-sem }()

			n, err := d.runCase(ctx, c, caseIndex)

			mu.Lock()
			failed += n
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}(i, c)
	}

	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	if firstErr != nil {
		return failed, firstErr
	}

	return failed, ctx.Err()
}

// runCase walks one case through the baseline and every grid point. The
// returned count is the number of failed rows it recorded.
func (d *Driver) runCase(ctx context.Context, c Case, caseIndex int) (int, error) {
	log.Println("case", c.ID+":", "starting")

	caseDir := filepath.Join(d.OutDir, c.ID)
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		d.record(FailedRow(c.ID, BaselineKind, "", err.Error()))

		return 1, nil
	}

	input, niftiPath, err := d.loadCase(c, caseDir)
	if err != nil {
		log.Println("case", c.ID+":", "loading failed:", err)
		d.record(FailedRow(c.ID, BaselineKind, "", err.Error()))

		return 1, nil
	}

	labelsPath := filepath.Join(caseDir, "labels.json")
	labels, err := totalseg.LoadLabelTable(labelsPath)
	if err != nil {
		d.record(FailedRow(c.ID, BaselineKind, "", err.Error()))

		return 1, nil
	}

	baseline, err := d.Segmenter.SegmentCombined(ctx, niftiPath, filepath.Join(caseDir, BaselineKind), input.Dims, labels)
	if err != nil {
		log.Println("case", c.ID+":", "baseline segmentation failed:", err)
		d.record(FailedRow(c.ID, BaselineKind, "", err.Error()))

		return 1, nil
	}
	d.saveLabels(c, labels, labelsPath)

	baselineScore, err := dice.Score(baseline, baseline)
	if err != nil {
		return 0, err
	}
	d.record(ScoredRow(c.ID, BaselineKind, "", baselineScore))

	failed := 0
	rng := augment.New(d.Seed + int64(caseIndex))

	for _, point := range d.Grid {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}

		n, err := d.runVariant(ctx, c, caseDir, input, baseline, labels, labelsPath, rng, point)
		failed += n
		if err != nil {
			return failed, err
		}
	}

	log.Println("case", c.ID+":", "complete,", len(d.Grid)-failed, "of", len(d.Grid), "variants scored")

	return failed, nil
}

func (d *Driver) runVariant(ctx context.Context, c Case, caseDir string, input *volume.Volume, baseline *volume.LabelVolume, labels totalseg.LabelTable, labelsPath string, rng *augment.Augmenter, point GridPoint) (int, error) {
	augmented, err := rng.ApplyAll(input, point.Settings)
	if err != nil {
		// Settings were validated at grid construction; anything here is
		// a caller bug that halts the run.
		return 0, err
	}

	variantDir := filepath.Join(caseDir, variantDirName(point.Params))
	if err := os.MkdirAll(variantDir, 0o755); err != nil {
		d.record(FailedRow(c.ID, point.Kind, point.Params, err.Error()))

		return 1, nil
	}

	variantInput := filepath.Join(variantDir, "volume.nii.gz")
	if err := volume.WriteNIfTI(variantInput, augmented); err != nil {
		d.record(FailedRow(c.ID, point.Kind, point.Params, err.Error()))

		return 1, nil
	}

	segmented, err := d.Segmenter.SegmentCombined(ctx, variantInput, variantDir, input.Dims, labels)
	if err != nil {
		log.Println("case", c.ID+":", point.Params, "failed:", err)
		d.record(FailedRow(c.ID, point.Kind, point.Params, err.Error()))

		return 1, nil
	}
	d.saveLabels(c, labels, labelsPath)

	res, err := dice.Score(baseline, segmented)
	if err != nil {
		// Incomparable volumes here mean a bug, not a data condition.
		return 0, err
	}

	log.Println("case", c.ID+":", point.Params, "aggregate dice", formatScore(res.Aggregate))
	d.record(ScoredRow(c.ID, point.Kind, point.Params, res))

	return 0, nil
}

// loadCase reads the case volume. DICOM series are converted to NIfTI so
// the tool sees one input format.
func (d *Driver) loadCase(c Case, caseDir string) (*volume.Volume, string, error) {
	if !c.DICOM {
		v, err := volume.ReadNIfTI(c.Path)

		return v, c.Path, err
	}

	v, err := volume.ReadDICOMSeries(c.Path)
	if err != nil {
		return nil, "", err
	}

	niftiPath := filepath.Join(caseDir, "input.nii.gz")
	if err := volume.WriteNIfTI(niftiPath, v); err != nil {
		return nil, "", err
	}

	return v, niftiPath, nil
}

// saveLabels persists the case's label table after every segmentation, so
// class ids stay stable if the sweep is interrupted and resumed.
func (d *Driver) saveLabels(c Case, labels totalseg.LabelTable, labelsPath string) {
	if err := labels.Save(labelsPath); err != nil {
		log.Println("case", c.ID+":", "saving label table:", err)
	}
}

func (d *Driver) record(row Row) {
	if err := d.Results.Append(row); err != nil {
		log.Println("appending result row:", err)
	}
	if d.DB != nil {
		if err := d.DB.Insert(row); err != nil {
			log.Println("mirroring result row:", err)
		}
	}
}
