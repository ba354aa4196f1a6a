package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fcrlab/segsweep/totalseg"
	"github.com/fcrlab/segsweep/volume"
)

// stubSegmenter returns a canned single-organ segmentation, failing on the
// call numbers it is told to.
type stubSegmenter struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (s *stubSegmenter) SegmentCombined(_ context.Context, _, _ string, dims [3]int, labels totalseg.LabelTable) (*volume.LabelVolume, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.failOn[call] {
		return nil, totalseg.RunError{Cmd: "stub", ExitCode: 1, Output: "stubbed failure"}
	}

	labels.Assign([]string{"liver"})
	out := volume.NewLabelVolume(dims, [3]float64{1, 1, 1})
	out.SetAt(0, 0, 0, 1)

	return out, nil
}

func (s *stubSegmenter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func writeCaseVolume(t *testing.T, path string) {
	t.Helper()

	v := volume.NewVolume([3]int{5, 5, 5}, [3]float64{1, 1, 1})
	for i := range v.Data {
		v.Data[i] = float64(i % 11)
	}
	if err := volume.WriteNIfTI(path, v); err != nil {
		t.Fatal(err)
	}
}

func newTestDriver(t *testing.T, seg Segmenter, grid []GridPoint) (*Driver, string) {
	t.Helper()

	outDir := t.TempDir()
	w, err := NewWriter(filepath.Join(outDir, "results.tsv"))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	return &Driver{
		Segmenter: seg,
		Grid:      grid,
		OutDir:    outDir,
		Seed:      1,
		Results:   w,
	}, outDir
}

func TestDriverRecordsBaselineAndGridRows(t *testing.T) {
	ctRoot := t.TempDir()
	writeCaseVolume(t, filepath.Join(ctRoot, "ct.nii.gz"))

	cases, err := DiscoverCases(ctRoot)
	if err != nil || len(cases) != 1 {
		t.Fatalf("discovered %v (err %v), expected one case", cases, err)
	}

	grid, err := BuildGrid([]float64{0.01, 0.05, 0.1}, []float64{1, 2}, nil)
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	// Call 1 is the baseline; fail the 2nd and 4th variant calls.
	seg := &stubSegmenter{failOn: map[int]bool{3: true, 5: true}}
	d, outDir := newTestDriver(t, seg, grid)

	failed, err := d.Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if failed != 2 {
		t.Errorf("Run reported %d failed rows, expected 2", failed)
	}

	rows, err := ReadRows(filepath.Join(outDir, "results.tsv"))
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("recorded %d rows, expected baseline plus 6 variants", len(rows))
	}

	if rows[0].Kind != BaselineKind || !rows[0].OK || rows[0].Aggregate != 1 {
		t.Errorf("baseline row = %+v", rows[0])
	}

	var scored, failedRows int
	for _, row := range rows[1:] {
		if row.Kind != "noise+blur" {
			t.Errorf("variant row kind %q, expected noise+blur", row.Kind)
		}
		if row.OK {
			scored++
			if row.Aggregate != 1 {
				t.Errorf("variant %s aggregate %v, expected 1 for identical stub output", row.Params, row.Aggregate)
			}
		} else {
			failedRows++
			if row.Reason == "" {
				t.Errorf("failed variant %s carries no reason", row.Params)
			}
			if row.Dice != "" || row.Classes != 0 {
				t.Errorf("failed variant %s carries scores: %+v", row.Params, row)
			}
		}
	}
	if scored != 4 || failedRows != 2 {
		t.Errorf("%d scored and %d failed variants, expected 4 and 2", scored, failedRows)
	}

	// The augmented input and label table live under the case directory.
	caseDir := filepath.Join(outDir, "ct.nii.gz")
	if _, err := os.Stat(filepath.Join(caseDir, "noise_sigma_0.01_blur_sigma_1", "volume.nii.gz")); err != nil {
		t.Errorf("variant input volume missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(caseDir, "labels.json")); err != nil {
		t.Errorf("label table missing: %v", err)
	}
}

func TestDriverSkipsVariantsWhenBaselineFails(t *testing.T) {
	ctRoot := t.TempDir()
	writeCaseVolume(t, filepath.Join(ctRoot, "ct.nii.gz"))

	cases, err := DiscoverCases(ctRoot)
	if err != nil {
		t.Fatal(err)
	}

	grid, err := BuildGrid([]float64{0.1, 0.2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	seg := &stubSegmenter{failOn: map[int]bool{1: true}}
	d, outDir := newTestDriver(t, seg, grid)

	failed, err := d.Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if failed != 1 {
		t.Errorf("Run reported %d failed rows, expected 1", failed)
	}

	rows, err := ReadRows(filepath.Join(outDir, "results.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Kind != BaselineKind || rows[0].OK {
		t.Errorf("rows = %+v, expected a single failed baseline row", rows)
	}

	if got := seg.callCount(); got != 1 {
		t.Errorf("segmenter called %d times, expected only the baseline attempt", got)
	}
}

func TestDriverStopsWhenCancelled(t *testing.T) {
	ctRoot := t.TempDir()
	writeCaseVolume(t, filepath.Join(ctRoot, "ct.nii.gz"))

	cases, err := DiscoverCases(ctRoot)
	if err != nil {
		t.Fatal(err)
	}

	seg := &stubSegmenter{}
	d, outDir := newTestDriver(t, seg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Run(ctx, cases); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, expected context.Canceled", err)
	}

	rows, err := ReadRows(filepath.Join(outDir, "results.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("recorded %d rows after pre-cancelled run, expected none", len(rows))
	}
}

func TestDriverMirrorsRowsToDB(t *testing.T) {
	ctRoot := t.TempDir()
	writeCaseVolume(t, filepath.Join(ctRoot, "ct.nii.gz"))

	cases, err := DiscoverCases(ctRoot)
	if err != nil {
		t.Fatal(err)
	}

	grid, err := BuildGrid([]float64{0.1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	seg := &stubSegmenter{}
	d, _ := newTestDriver(t, seg, grid)

	db, err := OpenDB(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()
	d.DB = db

	if _, err := d.Run(context.Background(), cases); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM experiment_rows"); err != nil {
		t.Fatalf("counting mirrored rows: %v", err)
	}
	if count != 2 {
		t.Errorf("mirrored %d rows, expected baseline plus one variant", count)
	}
}

func TestDriverRunsCasesConcurrently(t *testing.T) {
	ctRoot := t.TempDir()
	writeCaseVolume(t, filepath.Join(ctRoot, "a.nii.gz"))
	writeCaseVolume(t, filepath.Join(ctRoot, "b.nii.gz"))

	cases, err := DiscoverCases(ctRoot)
	if err != nil || len(cases) != 2 {
		t.Fatalf("discovered %v (err %v), expected two cases", cases, err)
	}

	grid, err := BuildGrid([]float64{0.1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	seg := &stubSegmenter{}
	d, outDir := newTestDriver(t, seg, grid)
	d.Concurrency = 2

	failed, err := d.Run(context.Background(), cases)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if failed != 0 {
		t.Errorf("Run reported %d failed rows, expected 0", failed)
	}

	rows, err := ReadRows(filepath.Join(outDir, "results.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Errorf("recorded %d rows, expected 2 baselines plus 2 variants", len(rows))
	}

	perCase := make(map[string]int)
	for _, row := range rows {
		perCase[row.Case]++
	}
	if perCase["a.nii.gz"] != 2 || perCase["b.nii.gz"] != 2 {
		t.Errorf("rows per case = %v, expected 2 each", perCase)
	}
}
