package sink

import (
	"encoding/json"
	"os"
	"path/filepath"

	"as24-worker/internal/crawler"
	errs "as24-worker/pkg/errors"
)

// FileSink persists records on disk in two parallel trees per market:
//
//	{baseDir}/{market}/raw/{id}.html   the raw listing fragment
//	{baseDir}/{market}/json/{id}.json  the structured record
//
// Writes are keyed by record id and overwrite unconditionally, so replaying
// a crawl (or observing the same listing across overlapping pages) is
// idempotent. Concurrent writers only conflict on identical ids, where
// last-write-wins is the intended outcome; no locking is needed.
type FileSink struct {
	baseDir string
}

// NewFileSink creates a sink rooted at baseDir
func NewFileSink(baseDir string) *FileSink {
	return &FileSink{baseDir: baseDir}
}

// Store writes both artifacts for one record
func (s *FileSink) Store(market, id, rawHTML string, record *crawler.Record) error {
	rawDir := filepath.Join(s.baseDir, market, "raw")
	jsonDir := filepath.Join(s.baseDir, market, "json")

	for _, dir := range []string{rawDir, jsonDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.NewPersistence(market, "failed to create artifact dir "+dir, err)
		}
	}

	rawPath := filepath.Join(rawDir, id+".html")
	if err := os.WriteFile(rawPath, []byte(rawHTML), 0644); err != nil {
		return errs.NewPersistence(market, "failed to write raw fragment "+id, err)
	}

	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return errs.NewPersistence(market, "failed to marshal record "+id, err)
	}

	jsonPath := filepath.Join(jsonDir, id+".json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return errs.NewPersistence(market, "failed to write record "+id, err)
	}

	return nil
}
