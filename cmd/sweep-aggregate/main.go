// Command sweep-aggregate collapses a completed sweep's per-simulation
// comparison outputs into the results table, persists a snapshot in the
// sweep's results database, and optionally renders reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/expression.report/internal/batch"
	"github.com/banshee-data/expression.report/internal/sim"
	"github.com/banshee-data/expression.report/internal/sweep"
	"github.com/banshee-data/expression.report/internal/version"
)

func main() {
	path := flag.String("path", "", "Sweep directory to aggregate")
	workers := flag.Int("workers", 4, "Parallel workers for loading simulations")
	report := flag.String("report", "", "Write an HTML report of the results to this file")
	histogram := flag.String("histogram", "", "Write a PNG histogram to this file")
	condition := flag.String("condition", sim.ConditionNormal, "Condition for -histogram")
	metric := flag.String("metric", sim.MetricError, "Metric for -histogram")
	bins := flag.Int("bins", 20, "Histogram bin count")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sweep-aggregate %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "sweep-aggregate: -path is required")
		flag.Usage()
		os.Exit(2)
	}

	s, err := sweep.Load(*path, batch.Options{Workers: *workers})
	if err != nil {
		log.Fatalf("sweep-aggregate: loading %s: %v", *path, err)
	}

	if err := s.Aggregate(); err != nil {
		log.Fatalf("sweep-aggregate: %v", err)
	}

	results, err := s.Results()
	if err != nil {
		log.Fatalf("sweep-aggregate: %v", err)
	}
	completed, err := s.Completed()
	if err != nil {
		log.Fatalf("sweep-aggregate: %v", err)
	}
	pct, err := s.PercentComplete()
	if err != nil {
		log.Fatalf("sweep-aggregate: %v", err)
	}
	fmt.Printf("aggregated %d samples, %.1f%% complete\n", len(completed), pct*100)

	if *report != "" {
		if err := sweep.WriteReportFile(*report, s.Family().Tag, results, completed); err != nil {
			log.Fatalf("sweep-aggregate: writing report: %v", err)
		}
	}
	if *histogram != "" {
		key := sweep.Key{Condition: *condition, Metric: *metric}
		if err := sweep.RenderHistogram(*histogram, results, key, *bins); err != nil {
			log.Fatalf("sweep-aggregate: rendering histogram: %v", err)
		}
	}
}
