package batch

// Layout names the fixed locations inside a batch directory. It is passed to
// the batch at construction rather than hardcoded at call sites, so tests can
// redirect storage without depending on literal subdirectory names.
type Layout struct {
	// SimulationsDir holds one numbered subdirectory per parameter set.
	SimulationsDir string

	// ScriptsDir holds the submission and runner scripts.
	ScriptsDir string

	// BatchesDir holds the chunk files and the chunk index.
	BatchesDir string

	// StateFile is the serialized batch object at the batch root.
	StateFile string

	// ChunkIndexFile enumerates the chunk files, relative to the batch root.
	ChunkIndexFile string
}

// DefaultLayout returns the on-disk contract used by production batches.
func DefaultLayout() Layout {
	return Layout{
		SimulationsDir: "simulations",
		ScriptsDir:     "scripts",
		BatchesDir:     "batches",
		StateFile:      "batch.json",
		ChunkIndexFile: "index.txt",
	}
}
