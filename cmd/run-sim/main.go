// Command run-sim executes one stored simulation: it loads a simulation
// directory, runs the stochastic dynamics for every condition, optionally
// computes the comparison metrics, and writes the results back in place.
//
// Batch run scripts invoke it once per simulation path listed in a chunk
// file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/expression.report/internal/sim"
	"github.com/banshee-data/expression.report/internal/version"
)

func main() {
	path := flag.String("path", "", "Simulation directory to run")
	trajectories := flag.Int("trajectories", 1000, "Number of stochastic runs per condition")
	compare := flag.Bool("compare", false, "Compute comparison metrics after running")
	deviations := flag.Bool("deviations", false, "Compare deviation variables instead of raw expression")
	saveAll := flag.Bool("saveall", false, "Persist trajectory data alongside the comparison results")
	plotDir := flag.String("plot", "", "Directory for per-condition dynamics plots (PNG)")
	seed := flag.Uint64("seed", 0, "Seed for the stochastic runs (0 derives one per condition)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("run-sim %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "run-sim: -path is required")
		flag.Usage()
		os.Exit(2)
	}

	store := sim.DirStore{}
	s, err := store.Load(*path)
	if err != nil {
		log.Fatalf("run-sim: loading %s: %v", *path, err)
	}

	if err := s.Run(*trajectories, *seed); err != nil {
		log.Fatalf("run-sim: running %s: %v", *path, err)
	}
	if *compare {
		if err := s.Compare(*deviations, nil); err != nil {
			log.Fatalf("run-sim: comparing %s: %v", *path, err)
		}
	}

	if err := store.Save(*path, s, *saveAll); err != nil {
		log.Fatalf("run-sim: saving %s: %v", *path, err)
	}

	if *plotDir != "" {
		if err := os.MkdirAll(*plotDir, 0o755); err != nil {
			log.Fatalf("run-sim: creating plot directory: %v", err)
		}
		for _, condition := range s.Conditions {
			dyn := s.Dynamics[condition]
			out := filepath.Join(*plotDir, condition+".png")
			if err := sim.RenderDynamics(out, condition, &dyn); err != nil {
				log.Fatalf("run-sim: plotting %s: %v", condition, err)
			}
		}
	}
}
