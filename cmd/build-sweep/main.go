// Command build-sweep samples the parameter space of a model family and
// materialises a sweep directory: one serialized simulation per sample,
// chunked path lists, and cluster submission scripts.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/expression.report/internal/batch"
	"github.com/banshee-data/expression.report/internal/sim"
	"github.com/banshee-data/expression.report/internal/sweep"
	"github.com/banshee-data/expression.report/internal/version"
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func main() {
	family := flag.String("family", "", "Model family to sweep (see -list)")
	dest := flag.String("dest", ".", "Destination directory for the sweep")
	samples := flag.Int("samples", 1000, "Number of parameter samples")
	delta := flag.Float64("delta", 0.5, "Log deviation about the family base")
	deltaVec := flag.String("delta-vec", "", "Comma-separated per-parameter deltas (overrides -delta)")
	pad := flag.Float64("pad", 0.1, "Extra log padding beyond the deviation")
	seed := flag.Uint64("seed", 0, "Sampler seed")
	batchSize := flag.Int("batch-size", 25, "Simulation paths per chunk file")
	trajectories := flag.Int("trajectories", 1000, "Stochastic runs each job simulates")
	saveAll := flag.Bool("saveall", false, "Jobs persist trajectory data")
	deviations := flag.Bool("deviations", false, "Jobs compare deviation variables")
	allocation := flag.String("allocation", "", "Cluster allocation charged by submitted jobs")
	workers := flag.Int("workers", 4, "Parallel workers for the build")
	configPath := flag.String("config", "", "Simulation config JSON applied to every sample")
	list := flag.Bool("list", false, "List registered families and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("build-sweep %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *list {
		for _, tag := range sweep.FamilyTags() {
			fmt.Println(tag)
		}
		return
	}
	if *family == "" {
		fmt.Fprintln(os.Stderr, "build-sweep: -family is required")
		flag.Usage()
		os.Exit(2)
	}

	var cfg *sim.Config
	if *configPath != "" {
		var err error
		cfg, err = sim.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("build-sweep: loading config: %v", err)
		}
	}

	dv, err := parseCSVFloatSlice(*deltaVec)
	if err != nil {
		log.Fatalf("build-sweep: parsing -delta-vec: %v", err)
	}

	s, err := sweep.New(*family, sweep.Options{
		Delta:      *delta,
		DeltaVec:   dv,
		Pad:        *pad,
		NumSamples: *samples,
		Seed:       *seed,
		Batch: batch.Options{
			SimConfig: cfg,
			Workers:   *workers,
		},
	})
	if err != nil {
		log.Fatalf("build-sweep: %v", err)
	}

	err = s.Build(*dest, batch.BuildConfig{
		BatchSize:    *batchSize,
		Trajectories: *trajectories,
		SaveAll:      *saveAll,
		Deviations:   *deviations,
		Allocation:   *allocation,
	})
	if err != nil {
		log.Fatalf("build-sweep: building: %v", err)
	}

	fmt.Println(s.Path())
}
