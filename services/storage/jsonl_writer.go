package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"as24-worker/internal/crawler"
)

// JSONLWriter writes one row-oriented JSON-lines file per market under the
// output directory, one line per unique accepted record.
type JSONLWriter struct {
	outputDir string
}

// NewJSONLWriter creates the output directory and returns a writer
func NewJSONLWriter(outputDir string) (*JSONLWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("jsonl: create output dir: %w", err)
	}
	return &JSONLWriter{outputDir: outputDir}, nil
}

// Write truncates and rewrites the market's aggregate file
func (w *JSONLWriter) Write(market string, records []crawler.Record) error {
	path := filepath.Join(w.outputDir, market+".jsonl")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("jsonl: create file %q: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			f.Close()
			return fmt.Errorf("jsonl: write record %s: %w", record.ID, err)
		}
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("jsonl: flush %q: %w", path, err)
	}
	return f.Close()
}

// Close implements AggregateWriter; files are closed per Write
func (w *JSONLWriter) Close() error {
	return nil
}
