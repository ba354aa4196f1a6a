// Package augment applies synthetic degradations to CT volumes so that
// segmentation robustness can be measured against an unaugmented baseline.
// Three transform kinds are supported: additive Gaussian noise, Gaussian
// blur, and downsampling with resample-back. All transforms return new
// volumes and leave their input untouched.
package augment

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/fcrlab/segsweep/volume"
)

const (
	KindNoise      = "noise"
	KindBlur       = "blur"
	KindDownsample = "downsample"
)

// Setting names one transform and its numeric parameters. It is a value
// object: one Setting per grid point per kind.
type Setting struct {
	Kind   string
	Params map[string]float64
}

// Noise builds a Setting that adds N(0, sigma) to every voxel.
func Noise(sigma float64) Setting {
	return Setting{Kind: KindNoise, Params: map[string]float64{"sigma": sigma}}
}

// Blur builds a Setting for isotropic Gaussian blur.
func Blur(sigma float64) Setting {
	return Setting{Kind: KindBlur, Params: map[string]float64{"sigma": sigma}}
}

// BlurAxis builds a Setting that blurs along a single axis (0 = x, 1 = y,
// 2 = z), leaving the other axes untouched.
func BlurAxis(sigma float64, axis int) Setting {
	name := [3]string{"sigma_x", "sigma_y", "sigma_z"}[axis]
	return Setting{Kind: KindBlur, Params: map[string]float64{name: sigma}}
}

// Downsample builds a Setting that reduces resolution by factor and
// resamples back to the original grid.
func Downsample(factor float64) Setting {
	return Setting{Kind: KindDownsample, Params: map[string]float64{"factor": factor}}
}

// String renders a Setting like "noise(sigma=0.05)", parameters in sorted
// order so the rendering is stable for results tables.
func (s Setting) String() string {
	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, s.Params[name]))
	}

	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(parts, ","))
}

// InvalidParameterError reports an augmentation parameter outside its
// physically valid range, an unknown parameter name, or an unknown kind.
// These are caller bugs and are surfaced immediately rather than recorded as
// failed experiment rows.
type InvalidParameterError struct {
	Kind   string
	Param  string
	Value  float64
	Reason string
}

func (e InvalidParameterError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("augmentation %q: %s", e.Kind, e.Reason)
	}

	return fmt.Sprintf("augmentation %q parameter %s=%g: %s", e.Kind, e.Param, e.Value, e.Reason)
}

var blurParams = map[string]bool{"sigma": true, "sigma_x": true, "sigma_y": true, "sigma_z": true}

// Validate checks a Setting without applying it. The experiment driver
// validates the whole grid up front so a bad config fails before any
// segmentation work starts.
func Validate(s Setting) error {
	switch s.Kind {
	case KindNoise:
		for name, val := range s.Params {
			if name != "sigma" {
				return InvalidParameterError{Kind: s.Kind, Param: name, Value: val, Reason: "unknown parameter"}
			}
			if !isFinite(val) || val < 0 {
				return InvalidParameterError{Kind: s.Kind, Param: name, Value: val, Reason: "standard deviation must be a finite value >= 0"}
			}
		}
		if _, ok := s.Params["sigma"]; !ok {
			return InvalidParameterError{Kind: s.Kind, Reason: "missing required parameter sigma"}
		}

	case KindBlur:
		for name, val := range s.Params {
			if !blurParams[name] {
				return InvalidParameterError{Kind: s.Kind, Param: name, Value: val, Reason: "unknown parameter"}
			}
			if !isFinite(val) || val < 0 {
				return InvalidParameterError{Kind: s.Kind, Param: name, Value: val, Reason: "sigma must be a finite value >= 0"}
			}
		}
		if len(s.Params) == 0 {
			return InvalidParameterError{Kind: s.Kind, Reason: "missing required parameter sigma"}
		}

	case KindDownsample:
		for name, val := range s.Params {
			if name != "factor" {
				return InvalidParameterError{Kind: s.Kind, Param: name, Value: val, Reason: "unknown parameter"}
			}
			if !isFinite(val) || val < 1 {
				return InvalidParameterError{Kind: s.Kind, Param: name, Value: val, Reason: "factor must be a finite value >= 1"}
			}
		}
		if _, ok := s.Params["factor"]; !ok {
			return InvalidParameterError{Kind: s.Kind, Reason: "missing required parameter factor"}
		}

	default:
		return InvalidParameterError{Kind: s.Kind, Reason: "unknown augmentation kind"}
	}

	return nil
}

// Augmenter applies Settings to volumes. The noise source is seeded once so
// a sweep is reproducible; an Augmenter is not safe for concurrent use, so
// parallel case processing gives each case its own.
type Augmenter struct {
	rng *rand.Rand
}

func New(seed int64) *Augmenter {
	return &Augmenter{rng: rand.New(rand.NewSource(seed))}
}

// Apply runs one transform, returning a new volume of the same dimensions.
func (a *Augmenter) Apply(v *volume.Volume, s Setting) (*volume.Volume, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	switch s.Kind {
	case KindNoise:
		return a.addNoise(v, s.Params["sigma"]), nil
	case KindBlur:
		return gaussianBlur(v, blurSigmas(s)), nil
	default:
		return downsample(v, s.Params["factor"]), nil
	}
}

// ApplyAll folds Apply over the Settings of one grid point, in order.
func (a *Augmenter) ApplyAll(v *volume.Volume, settings []Setting) (*volume.Volume, error) {
	out := v
	for _, s := range settings {
		applied, err := a.Apply(out, s)
		if err != nil {
			return nil, err
		}
		out = applied
	}

	return out, nil
}

func blurSigmas(s Setting) [3]float64 {
	var out [3]float64
	if sigma, ok := s.Params["sigma"]; ok {
		out = [3]float64{sigma, sigma, sigma}
	}
	for i, name := range []string{"sigma_x", "sigma_y", "sigma_z"} {
		if sigma, ok := s.Params[name]; ok {
			out[i] = sigma
		}
	}

	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
