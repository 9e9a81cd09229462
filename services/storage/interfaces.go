package storage

import (
	"as24-worker/internal/crawler"
	"as24-worker/internal/normalizer"
)

// AggregateWriter persists the per-market aggregate of raw extracted records
type AggregateWriter interface {
	Write(market string, records []crawler.Record) error
	Close() error
}

// CleanWriter persists the typed projection produced by the normalizer
type CleanWriter interface {
	WriteClean(records []normalizer.CleanRecord) error
	Close() error
}
