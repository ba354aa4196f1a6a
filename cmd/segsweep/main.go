// segsweep measures how robust TotalSegmentator is to image degradation.
// Every CT volume under CT_PATH is segmented once unmodified to form a
// baseline, then re-segmented after each configured combination of noise,
// blur, and downsampling. Dice agreement between each degraded run and the
// baseline is appended to a results.tsv under OUTPUT_DIRECTORY, optionally
// mirrored into a SQLite database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/fcrlab/segsweep/compileinfoprint"
	"github.com/fcrlab/segsweep/segconfig"
	"github.com/fcrlab/segsweep/sweep"
	"github.com/fcrlab/segsweep/totalseg"
)

func main() {
	var configPath, binary, dbPath string
	var concurrency int

	flag.StringVar(&configPath, "config", segconfig.DefaultPath, "Path to the YAML sweep configuration.")
	flag.StringVar(&binary, "binary", "", "TotalSegmentator executable. Looked up on PATH when empty.")
	flag.StringVar(&dbPath, "db", "", "Optional SQLite file that mirrors the results table.")
	flag.IntVar(&concurrency, "concurrency", 1, "Cases processed in parallel. Segmentator invocations stay serialized.")
	flag.Parse()

	cfg, err := segconfig.Load(configPath)
	if err != nil {
		log.Fatalln(err)
	}

	runner, err := totalseg.NewRunner(binary, cfg.Task, cfg.Fast, cfg.Timeout())
	if err != nil {
		log.Fatalln(err)
	}

	grid, err := sweep.BuildGrid(cfg.NoiseValues(), cfg.BlurValues(), cfg.DownsampleValues())
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
	log.Println("Found", len(cases), "cases under", cfg.CTPath, "and built a grid of", len(grid), "degradation points")

	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		log.Fatalln(err)
	}

	results, err := sweep.NewWriter(filepath.Join(cfg.OutputDirectory, "results.tsv"))
	if err != nil {
		log.Fatalln(err)
	}
	defer results.Close()

	var db *sweep.DB
	if dbPath != "" {
		if db, err = sweep.OpenDB(dbPath); err != nil {
			log.Fatalln(err)
		}
		defer db.Close()
	}

	seed := cfg.RunSeed()
	log.Println("Using seed", seed, "- set SEED in the configuration to repeat this run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		syscall.SIGTERM,
	)
	go func() {
		s := <-sig
		log.Println("Received", s, "- stopping after in-flight cases finish")
		cancel()
	}()

	driver := &sweep.Driver{
		Segmenter:   runner,
		Grid:        grid,
		OutDir:      cfg.OutputDirectory,
		Seed:        seed,
		Concurrency: concurrency,
		Results:     results,
		DB:          db,
	}

	failed, err := driver.Run(ctx, cases)
	if err != nil {
		log.Fatalln(err)
	}

	log.Println("Completed", len(cases), "cases with", failed, "failed rows. Results are in", filepath.Join(cfg.OutputDirectory, "results.tsv"))
}
