package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Script file names under the scripts directory.
const (
	submitScriptName = "submit.sh"
	runScriptName    = "run.sh"
)

// writeScripts emits the job-submission script and the per-chunk runner.
// The scripts are a thin textual side effect of the build: one queued job per
// chunk file, each job consuming its chunk file as input.
func writeScripts(root string, layout Layout, cfg BuildConfig) error {
	if err := writeRunScript(root, layout, cfg); err != nil {
		return err
	}
	return writeSubmitScript(root, layout, cfg)
}

// writeRunScript writes the runner a single job executes: it walks one chunk
// file and invokes run-sim on each simulation path.
func writeRunScript(root string, layout Layout, cfg BuildConfig) error {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("# Runs every simulation listed in the chunk file given as $1.\n")
	b.WriteString("set -eu\n\n")
	fmt.Fprintf(&b, "cd %q\n\n", mustAbs(root))
	b.WriteString("while read -r SIM; do\n")
	fmt.Fprintf(&b, "    run-sim -path \"$SIM\" -trajectories %d -compare%s%s\n",
		cfg.Trajectories, boolFlag(" -saveall", cfg.SaveAll), boolFlag(" -deviations", cfg.Deviations))
	b.WriteString("done < \"$1\"\n")

	return writeExecutable(filepath.Join(root, layout.ScriptsDir, runScriptName), b.String())
}

// writeSubmitScript writes the outer submission loop: one queued job per
// chunk file listed in the chunk index.
func writeSubmitScript(root string, layout Layout, cfg BuildConfig) error {
	absRoot := mustAbs(root)

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "cd %q\n\n", absRoot)
	b.WriteString("while IFS= read -r CHUNK; do\n")
	b.WriteString("    JOB=`msub - << EOJ\n")
	b.WriteString("#!/bin/bash\n")
	if cfg.Allocation != "" {
		fmt.Fprintf(&b, "#MSUB -A %s\n", cfg.Allocation)
	}
	b.WriteString("#MSUB -q short\n")
	b.WriteString("#MSUB -l walltime=04:00:00\n")
	b.WriteString("#MSUB -l nodes=1:ppn=1\n")
	b.WriteString("#MSUB -l mem=1gb\n")
	b.WriteString("#MSUB -o ${CHUNK}.outlog\n")
	b.WriteString("#MSUB -e ${CHUNK}.errlog\n\n")
	fmt.Fprintf(&b, "cd %q\n", absRoot)
	fmt.Fprintf(&b, "bash ./%s/%s \"${CHUNK}\"\n", layout.ScriptsDir, runScriptName)
	b.WriteString("EOJ\n")
	b.WriteString("`\n")
	b.WriteString("done < " + fmt.Sprintf("./%s/%s", layout.BatchesDir, layout.ChunkIndexFile) + "\n")
	b.WriteString("echo \"All chunks submitted as of `date`\"\n")

	return writeExecutable(filepath.Join(root, layout.ScriptsDir, submitScriptName), b.String())
}

func writeExecutable(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("batch: writing script %s: %w", path, err)
	}
	return nil
}

func boolFlag(flag string, on bool) string {
	if on {
		return flag
	}
	return ""
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
