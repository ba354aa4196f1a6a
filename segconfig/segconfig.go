// Package segconfig loads the sweep configuration from config.yml. Values
// are handed to components explicitly; nothing in here is package-level
// state.
package segconfig

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/fcrlab/segsweep/totalseg"
)

// DefaultPath is the file read when no -config flag is given.
const DefaultPath = "config.yml"

// ConfigurationError means the configuration itself is unusable and the run
// must abort before any case is processed.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// Config mirrors config.yml. The file uses upper-case keys. For each
// augmentation kind, the explicit value list wins over the range form; a
// range is [low, high] swept with the given number of equally spaced steps.
type Config struct {
	CTPath          string `yaml:"CT_PATH"`
	OutputDirectory string `yaml:"OUTPUT_DIRECTORY"`
	Task            string `yaml:"TASK"`
	Fast            bool   `yaml:"FAST"`

	NoiseStdDevs      []float64 `yaml:"NOISE_STD_DEVS"`
	BlurSigmas        []float64 `yaml:"BLUR_SIGMAS"`
	DownsampleFactors []float64 `yaml:"DOWNSAMPLE_FACTORS"`

	NoiseRange      []float64 `yaml:"NOISE_RANGE"`
	NoiseSteps      int       `yaml:"NOISE_STEPS"`
	BlurRange       []float64 `yaml:"BLUR_RANGE"`
	BlurSteps       int       `yaml:"BLUR_STEPS"`
	DownsampleRange []float64 `yaml:"DOWNSAMPLE_RANGE"`
	DownsampleSteps int       `yaml:"DOWNSAMPLE_STEPS"`

	TimeoutMinutes float64 `yaml:"TIMEOUT_MINUTES"`
	Seed           int64   `yaml:"SEED"`
}

// Load reads path, applies defaults, expands ~ in the path keys, and
// validates. All failures are ConfigurationErrors.
func Load(path string) (Config, error) {
	out := Config{Task: totalseg.DefaultTask, Fast: true}

	bts, err := os.ReadFile(path)
	if err != nil {
		return out, ConfigurationError{Key: path, Reason: err.Error()}
	}
	if err := yaml.Unmarshal(bts, &out); err != nil {
		return out, ConfigurationError{Key: path, Reason: err.Error()}
	}

	out.CTPath = expandHomeDir(out.CTPath)
	out.OutputDirectory = expandHomeDir(out.OutputDirectory)

	if err := out.validate(); err != nil {
		return out, err
	}

	return out, nil
}

func (c Config) validate() error {
	if c.CTPath == "" {
		return ConfigurationError{Key: "CT_PATH", Reason: "required key is missing"}
	}
	if c.OutputDirectory == "" {
		return ConfigurationError{Key: "OUTPUT_DIRECTORY", Reason: "required key is missing"}
	}
	if _, err := os.Stat(c.CTPath); err != nil {
		return ConfigurationError{Key: "CT_PATH", Reason: err.Error()}
	}

	for _, r := range []struct {
		rangeKey string
		rng      []float64
		stepsKey string
		steps    int
	}{
		{"NOISE_RANGE", c.NoiseRange, "NOISE_STEPS", c.NoiseSteps},
		{"BLUR_RANGE", c.BlurRange, "BLUR_STEPS", c.BlurSteps},
		{"DOWNSAMPLE_RANGE", c.DownsampleRange, "DOWNSAMPLE_STEPS", c.DownsampleSteps},
	} {
		if len(r.rng) == 0 {
			continue
		}
		if len(r.rng) != 2 {
			return ConfigurationError{Key: r.rangeKey, Reason: fmt.Sprintf("expected [low, high], found %d values", len(r.rng))}
		}
		if r.steps < 2 {
			return ConfigurationError{Key: r.stepsKey, Reason: "a range sweep needs at least 2 steps"}
		}
	}

	if c.TimeoutMinutes < 0 {
		return ConfigurationError{Key: "TIMEOUT_MINUTES", Reason: "must not be negative"}
	}

	return nil
}

// NoiseValues returns the noise standard deviations to sweep.
func (c Config) NoiseValues() []float64 {
	return valuesOrSpan(c.NoiseStdDevs, c.NoiseRange, c.NoiseSteps)
}

// BlurValues returns the blur sigmas to sweep.
func (c Config) BlurValues() []float64 {
	return valuesOrSpan(c.BlurSigmas, c.BlurRange, c.BlurSteps)
}

// DownsampleValues returns the downsample factors to sweep.
func (c Config) DownsampleValues() []float64 {
	return valuesOrSpan(c.DownsampleFactors, c.DownsampleRange, c.DownsampleSteps)
}

// Timeout is the per-invocation limit for the segmentation tool; 0 disables
// it.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes * float64(time.Minute))
}

// RunSeed returns SEED, or a clock-derived seed when SEED is 0. Callers log
// the value so any run can be repeated.
func (c Config) RunSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}

	return time.Now().UnixNano()
}

func valuesOrSpan(explicit, rng []float64, steps int) []float64 {
	if len(explicit) > 0 {
		return explicit
	}
	if len(rng) == 2 && steps >= 2 {
		return floats.Span(make([]float64, steps), rng[0], rng[1])
	}

	return nil
}

// Interpret ~ if present
func expandHomeDir(path string) string {
	usr, err := user.Current()
	if err != nil {
		return path
	}

	dir := usr.HomeDir

	if path == "~" {
		path = dir
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(dir, path[2:])
	}

	return path
}
