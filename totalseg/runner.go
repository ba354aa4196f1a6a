// Package totalseg drives the TotalSegmentator command-line tool and folds
// its per-organ mask output into single multi-class label volumes.
package totalseg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/carbocation/pfx"

	"github.com/fcrlab/segsweep/volume"
)

const (
	// DefaultBinary is the tool name resolved on PATH when no explicit
	// location is configured.
	DefaultBinary = "TotalSegmentator"

	// DefaultTask selects the tool's full organ set.
	DefaultTask = "total"

	// CombinedFileName is the merged label volume written under each run
	// directory.
	CombinedFileName = "combined.nii.gz"

	// MaskDirName holds the tool's raw per-organ output under a run
	// directory.
	MaskDirName = "masks"
)

// outputTail bounds how much tool output a RunError carries.
const outputTail = 2048

// Runner invokes TotalSegmentator. A single device token serializes
// invocations, so concurrent cases queue for the tool rather than contending
// for the GPU.
type Runner struct {
	binary  string
	task    string
	fast    bool
	timeout time.Duration

	device chan bool
}

// NewRunner resolves the tool up front so a missing installation is caught
// before any case is processed. An empty binary or task selects the default.
// timeout bounds each invocation; 0 means no limit.
func NewRunner(binary, task string, fast bool, timeout time.Duration) (*Runner, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	if task == "" {
		task = DefaultTask
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &Runner{
		binary:  resolved,
		task:    task,
		fast:    fast,
		timeout: timeout,
		device:  make(chan bool, 1),
	}, nil
}

// RunError reports a tool invocation that exited unsuccessfully.
type RunError struct {
	Cmd      string
	ExitCode int
	TimedOut bool
	Output   string
}

func (e RunError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out: %s", e.Cmd, e.Output)
	}

	return fmt.Sprintf("%s exited with status %d: %s", e.Cmd, e.ExitCode, e.Output)
}

// Segment runs the tool on one NIfTI file, writing per-organ masks into
// maskDir. A process that starts but fails yields a RunError.
func (r *Runner) Segment(ctx context.Context, niftiPath, maskDir string) error {
	r.device <- true
	defer func() { <-r.device }()

	if err := os.MkdirAll(maskDir, 0o755); err != nil {
		return pfx.Err(err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{"-i", niftiPath, "-o", maskDir, "-ta", r.task}
	if r.fast {
		args = append(args, "--fast")
	}

	out, err := exec.CommandContext(ctx, r.binary, args...).CombinedOutput()
	if err == nil {
		return nil
	}

	runErr := RunError{
		Cmd:      filepath.Base(r.binary),
		ExitCode: -1,
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Output:   tail(out),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		runErr.ExitCode = exitErr.ExitCode()
	}
	if runErr.Output == "" {
		runErr.Output = err.Error()
	}

	return runErr
}

// SegmentCombined segments one NIfTI file and merges the resulting masks
// into outDir/combined.nii.gz, whose shape must match inputDims. When the
// combined file already exists it is reloaded instead of re-running the
// tool, which lets a resumed sweep reuse its baseline work.
func (r *Runner) SegmentCombined(ctx context.Context, niftiPath, outDir string, inputDims [3]int, labels LabelTable) (*volume.LabelVolume, error) {
	combinedPath := filepath.Join(outDir, CombinedFileName)
	if _, err := os.Stat(combinedPath); err == nil {
		combined, err := volume.ReadLabelNIfTI(combinedPath)
		if err != nil {
			return nil, err
		}
		if err := checkDims(combined.Dims, inputDims); err != nil {
			return nil, err
		}

		return combined, nil
	}

	maskDir := filepath.Join(outDir, MaskDirName)
	if err := r.Segment(ctx, niftiPath, maskDir); err != nil {
		return nil, err
	}

	combined, err := Combine(maskDir, labels)
	if err != nil {
		return nil, err
	}
	if err := checkDims(combined.Dims, inputDims); err != nil {
		return nil, err
	}

	if err := volume.WriteLabelNIfTI(combinedPath, combined); err != nil {
		return nil, err
	}

	return combined, nil
}

func checkDims(got, want [3]int) error {
	if got != want {
		return fmt.Errorf("segmentation shape %v does not match input shape %v", got, want)
	}

	return nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTail {
		s = s[len(s)-outputTail:]
	}

	return s
}
