// voloverlap compares two label volumes of the same shape and prints a
// per-label overlap table: voxel counts, agreement, and the Dice and
// Jaccard coefficients.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	_ "github.com/fcrlab/segsweep/compileinfoprint"
	"github.com/fcrlab/segsweep/dice"
	"github.com/fcrlab/segsweep/volume"
)

func main() {
	var volume1, volume2 string

	flag.StringVar(&volume1, "volume1", "", "First label volume (.nii or .nii.gz).")
	flag.StringVar(&volume2, "volume2", "", "Second label volume of the same shape.")
	flag.Parse()

	if volume1 == "" || volume2 == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(volume1, volume2); err != nil {
		log.Fatalln(err)
	}
}

func run(path1, path2 string) error {
	a, err := volume.ReadLabelNIfTI(path1)
	if err != nil {
		return err
	}

	b, err := volume.ReadLabelNIfTI(path2)
	if err != nil {
		return err
	}

	if a.Dims != b.Dims {
		return dice.ShapeMismatchError{DimsA: a.Dims, DimsB: b.Dims}
	}

	tallies := dice.Tally(a.Data, b.Data)

	classes := make([]int32, 0, len(tallies))
	for class := range tallies {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	fmt.Println(strings.Join([]string{"Label", "Count1", "Count2", "Agree", "Only1", "Only2", "Dice", "Jaccard"}, "\t"))
	for _, class := range classes {
		t := tallies[class]
		fmt.Printf("%d\t%d\t%d\t%d\t%d\t%d\t%g\t%g\n",
			class, t.CountA, t.CountB, t.Agreed, t.CountA-t.Agreed, t.CountB-t.Agreed, t.Dice(), t.Jaccard())
	}

	return nil
}
