package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"as24-worker/internal/crawler"

	"github.com/stretchr/testify/assert"
)

func TestJSONLWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONLWriter(filepath.Join(dir, "aggregate"))
	assert.NoError(t, err)

	records := []crawler.Record{
		{ID: "ad-1", URL: "/angebote/ad-1", Price: "10.000 €", Country: "D", Brand: "volkswagen", Model: "golf", Year: 2018},
		{ID: "ad-2", URL: "/angebote/ad-2", Price: "11.000 €", Country: "D", Brand: "volkswagen", Model: "golf", Year: 2018},
	}
	assert.NoError(t, w.Write("D", records))

	f, err := os.Open(filepath.Join(dir, "aggregate", "D.jsonl"))
	assert.NoError(t, err)
	defer f.Close()

	var lines []crawler.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r crawler.Record
		assert.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		lines = append(lines, r)
	}
	assert.NoError(t, scanner.Err())

	assert.Equal(t, 2, len(lines))
	assert.Equal(t, "ad-1", lines[0].ID)
	assert.Equal(t, "10.000 €", lines[0].Price)
	assert.Equal(t, "volkswagen", lines[1].Brand)
}

func TestJSONLWriterRewritesFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONLWriter(dir)
	assert.NoError(t, err)

	assert.NoError(t, w.Write("NL", []crawler.Record{{ID: "old"}, {ID: "older"}}))
	assert.NoError(t, w.Write("NL", []crawler.Record{{ID: "new"}}))

	data, err := os.ReadFile(filepath.Join(dir, "NL.jsonl"))
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"new"`)
	assert.NotContains(t, string(data), `"old"`)
}
