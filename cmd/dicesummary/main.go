// dicesummary is a convenience tool to summarize a segsweep results table
// by degradation, printing mean, spread, and failure counts per grid point.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/montanaflynn/stats"

	_ "github.com/fcrlab/segsweep/compileinfoprint"
	"github.com/fcrlab/segsweep/sweep"
)

func main() {
	var input string

	flag.StringVar(&input, "input", "", "results.tsv produced by segsweep.")
	flag.Parse()

	if input == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := summarize(input); err != nil {
		log.Fatalln(err)
	}
}

type gridGroup struct {
	kind   string
	params string
	scores []float64
	failed int
}

func summarize(input string) error {
	rows, err := sweep.ReadRows(input)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return fmt.Errorf("no rows in %s", input)
	}

	// Group by grid point, keeping the file's first-appearance order so the
	// baseline row leads the table.
	groups := make(map[string]*gridGroup)
	order := []string{}
	for _, row := range rows {
		key := row.Kind + "\x00" + row.Params
		g, ok := groups[key]
		if !ok {
			g = &gridGroup{kind: row.Kind, params: row.Params}
			groups[key] = g
			order = append(order, key)
		}

		if row.OK {
			g.scores = append(g.scores, row.Aggregate)
		} else {
			g.failed++
		}
	}

	fmt.Println(strings.Join([]string{
		"Kind",
		"Params",
		"N",
		"Failed",
		"Mean",
		"SD",
		"Median",
		"Min",
		"Max",
	}, "\t"))

	for _, key := range order {
		g := groups[key]
		output := []string{
			g.kind,
			g.params,
			fmt.Sprintf("%d", len(g.scores)),
			fmt.Sprintf("%d", g.failed),
		}

		data := stats.LoadRawData(g.scores)
		if data.Len() < 1 {
			output = append(output, []string{"N/A", "N/A", "N/A", "N/A", "N/A"}...)
			fmt.Println(strings.Join(output, "\t"))
			continue
		}

		for _, stat := range []func() (float64, error){
			data.Mean,
			data.StandardDeviation,
			data.Median,
			data.Min,
			data.Max,
		} {
			fl, err := stat()
			if err != nil {
				return err
			}
			output = append(output, fmt.Sprintf("%.3f", fl))
		}

		fmt.Println(strings.Join(output, "\t"))
	}

	return nil
}
