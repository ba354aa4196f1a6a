package sweep

import (
	"strings"

	"github.com/fcrlab/segsweep/augment"
)

// GridPoint is one experiment variant: the ordered augmentations applied
// together to a case before it is re-segmented.
type GridPoint struct {
	Kind     string
	Params   string
	Settings []augment.Setting
}

// BuildGrid forms the Cartesian product across the kinds that have values,
// in fixed kind order noise, blur, downsample. Every setting is validated
// here so a bad config number aborts the run before any segmentation
// happens.
func BuildGrid(noiseStdDevs, blurSigmas, downsampleFactors []float64) ([]GridPoint, error) {
	kinds := make([][]augment.Setting, 0, 3)

	if len(noiseStdDevs) > 0 {
		settings := make([]augment.Setting, 0, len(noiseStdDevs))
		for _, sd := range noiseStdDevs {
			settings = append(settings, augment.Noise(sd))
		}
		kinds = append(kinds, settings)
	}
	if len(blurSigmas) > 0 {
		settings := make([]augment.Setting, 0, len(blurSigmas))
		for _, sigma := range blurSigmas {
			settings = append(settings, augment.Blur(sigma))
		}
		kinds = append(kinds, settings)
	}
	if len(downsampleFactors) > 0 {
		settings := make([]augment.Setting, 0, len(downsampleFactors))
		for _, factor := range downsampleFactors {
			settings = append(settings, augment.Downsample(factor))
		}
		kinds = append(kinds, settings)
	}

	if len(kinds) == 0 {
		return nil, nil
	}

	points := []GridPoint{{}}
	for _, settings := range kinds {
		next := make([]GridPoint, 0, len(points)*len(settings))
		for _, p := range points {
			for _, s := range settings {
				combined := append(append([]augment.Setting{}, p.Settings...), s)
				next = append(next, GridPoint{Settings: combined})
			}
		}
		points = next
	}

	for i := range points {
		for _, s := range points[i].Settings {
			if err := augment.Validate(s); err != nil {
				return nil, err
			}
		}
		points[i].Kind, points[i].Params = describe(points[i].Settings)
	}

	return points, nil
}

func describe(settings []augment.Setting) (kind, params string) {
	kindNames := make([]string, 0, len(settings))
	rendered := make([]string, 0, len(settings))
	for _, s := range settings {
		kindNames = append(kindNames, s.Kind)
		rendered = append(rendered, s.String())
	}

	return strings.Join(kindNames, "+"), strings.Join(rendered, " ")
}

// variantDirName turns a grid point's params into a directory name, so
// "noise(sigma=0.01) blur(sigma=1)" becomes "noise_sigma_0.01_blur_sigma_1".
func variantDirName(params string) string {
	var b strings.Builder
	for _, r := range params {
		switch r {
		case ')':
		case '(', '=', ',', ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}
