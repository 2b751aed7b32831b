package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeChunks partitions the ordered simulation paths into chunk files of
// batchSize entries and writes the chunk index. Ascending index order is
// preserved within and across chunks, and the final partial chunk is always
// written out.
func writeChunks(root string, layout Layout, simPaths []string, batchSize int) error {
	batchesDir := filepath.Join(root, layout.BatchesDir)

	index, err := os.Create(filepath.Join(batchesDir, layout.ChunkIndexFile))
	if err != nil {
		return fmt.Errorf("batch: creating chunk index: %w", err)
	}
	defer index.Close()
	indexW := bufio.NewWriter(index)

	for start := 0; start < len(simPaths); start += batchSize {
		end := start + batchSize
		if end > len(simPaths) {
			end = len(simPaths)
		}
		chunkID := start / batchSize
		chunkRel := filepath.Join(layout.BatchesDir, fmt.Sprintf("%d.txt", chunkID))
		if err := writeChunkFile(filepath.Join(root, chunkRel), simPaths[start:end]); err != nil {
			return err
		}
		fmt.Fprintf(indexW, "%s\n", chunkRel)
	}

	if err := indexW.Flush(); err != nil {
		return fmt.Errorf("batch: flushing chunk index: %w", err)
	}
	return index.Close()
}

func writeChunkFile(path string, simPaths []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("batch: creating chunk file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range simPaths {
		fmt.Fprintf(w, "%s\n", p)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("batch: flushing chunk file %s: %w", path, err)
	}
	return f.Close()
}

// ReadChunkIndex returns the chunk file paths listed in the chunk index,
// relative to the batch root.
func ReadChunkIndex(root string, layout Layout) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, layout.BatchesDir, layout.ChunkIndexFile))
	if err != nil {
		return nil, fmt.Errorf("batch: reading chunk index: %w", err)
	}
	var chunks []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks, nil
}

// ReadChunkFile returns the simulation paths listed in one chunk file.
func ReadChunkFile(root, chunkPath string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, chunkPath))
	if err != nil {
		return nil, fmt.Errorf("batch: reading chunk file: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}
