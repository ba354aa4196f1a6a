// reorient writes axis-flipped copies of a NIfTI volume. Flipping a mask
// along each axis combination is a quick way to spot orientation mismatches
// between a segmentation and the scan it was derived from.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/fcrlab/segsweep/compileinfoprint"
	"github.com/fcrlab/segsweep/volume"
)

// Axis order is x, y, z.
var flips = []struct {
	name string
	axes []int
}{
	{"flip_x", []int{0}},
	{"flip_y", []int{1}},
	{"flip_z", []int{2}},
	{"flip_xy", []int{0, 1}},
	{"flip_xz", []int{0, 2}},
	{"flip_yz", []int{1, 2}},
	{"flip_xyz", []int{0, 1, 2}},
}

func main() {
	var input, output, axes, prefix string

	flag.StringVar(&input, "input", "", "Volume to flip (.nii or .nii.gz).")
	flag.StringVar(&output, "output", "", "Directory for the flipped copies.")
	flag.StringVar(&axes, "axes", "all", "Axes to flip: x, y, z, xy, xz, yz, xyz, or all for every combination.")
	flag.StringVar(&prefix, "prefix", "", "Output file name prefix. Defaults to the input file's stem.")
	flag.Parse()

	if input == "" || output == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if prefix == "" {
		prefix = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(input), ".gz"), ".nii")
	}

	if err := run(input, output, axes, prefix); err != nil {
		log.Fatalln(err)
	}
}

func run(input, output, axes, prefix string) error {
	v, err := volume.ReadNIfTI(input)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}

	wrote := 0
	for _, flip := range flips {
		if axes != "all" && flip.name != "flip_"+axes {
			continue
		}

		flipped, err := volume.FlipAxes(v, flip.axes...)
		if err != nil {
			return err
		}

		outPath := filepath.Join(output, fmt.Sprintf("%s_%s.nii.gz", prefix, flip.name))
		if err := volume.WriteNIfTI(outPath, flipped); err != nil {
			return err
		}

		log.Println("Saved flipped image:", outPath)
		wrote++
	}

	if wrote == 0 {
		return fmt.Errorf("unknown axes %q: expected x, y, z, xy, xz, yz, xyz, or all", axes)
	}

	return nil
}
