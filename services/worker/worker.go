package worker

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"as24-worker/config"
	"as24-worker/helpers"
	"as24-worker/internal/crawler"
	"as24-worker/internal/normalizer"
	"as24-worker/logger"
	"as24-worker/services/publisher"
	"as24-worker/services/storage"

	"github.com/google/uuid"
)

// Worker is the batch driver: it fans the cross product of configured
// markets, brand/model identifiers and years out over a fixed-size pool,
// aggregates the per-query results, and hands the aggregate to the writers
// and the normalizer. Queries complete in arbitrary order; each one owns its
// crawl state, so the only shared resources are the content cache and the
// sink, both of which are keyed and idempotent.
type Worker struct {
	cfg         *config.Config
	crawler     *crawler.Crawler
	pub         publisher.Publisher
	aggWriter   storage.AggregateWriter
	cleanWriter storage.CleanWriter
}

// NewWorker creates a batch driver. The fetcher and sink are composed into
// the crawl pipeline here; pub and cleanWriter may be nil.
func NewWorker(
	cfg *config.Config,
	fetcher crawler.Fetcher,
	sink crawler.Sink,
	pub publisher.Publisher,
	aggWriter storage.AggregateWriter,
	cleanWriter storage.CleanWriter,
) *Worker {
	// The content cache is keyed by the exact URL, so a datestamp parameter
	// keeps one day's crawl from serving the next day's.
	template := cfg.URLTemplate + "&datestamp=" + time.Now().Format("2006-01-02")

	return &Worker{
		cfg:         cfg,
		crawler:     crawler.New(fetcher, sink, template),
		pub:         pub,
		aggWriter:   aggWriter,
		cleanWriter: cleanWriter,
	}
}

// Run executes one full batch crawl. A failed query is logged and skipped;
// only aggregate-output failures surface as the returned error.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.ForWorker().WithField("run_id", uuid.NewString()[:8])
	start := time.Now()

	queries := w.buildQueries()
	log.Info().
		Int("queries", len(queries)).
		Int("workers", w.cfg.WorkerCount).
		Msg("Starting batch crawl")

	var (
		mu       sync.Mutex
		byMarket = make(map[string][]crawler.Record)
		wg       sync.WaitGroup
		tasks    = make(chan crawler.Query)
	)

	for i := 0; i < w.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range tasks {
				records := w.crawlOne(ctx, q)
				if len(records) == 0 {
					continue
				}
				mu.Lock()
				byMarket[q.Market] = append(byMarket[q.Market], records...)
				mu.Unlock()
			}
		}()
	}

	for _, q := range queries {
		tasks <- q
	}
	close(tasks)
	wg.Wait()

	if err := w.writeAggregates(byMarket); err != nil {
		return err
	}

	if w.pub != nil {
		if err := w.pub.TrimStreams(); err != nil {
			log.Error().Err(err).Msg("Failed to trim streams")
		}
	}

	total := 0
	for _, records := range byMarket {
		total += len(records)
	}
	log.Info().
		Int("records", total).
		Dur("elapsed", time.Since(start)).
		Msg("Finished batch crawl")
	return nil
}

// buildQueries expands the configured cross product
func (w *Worker) buildQueries() []crawler.Query {
	var queries []crawler.Query
	for _, market := range w.cfg.Markets {
		for _, brandModel := range w.cfg.BrandModels {
			for _, year := range w.cfg.Years() {
				queries = append(queries, crawler.Query{
					Market:     market,
					BrandModel: brandModel,
					Year:       year,
				})
			}
		}
	}
	return queries
}

// crawlOne runs a single query to completion and tags its records with
// provenance. A fetch failure aborts this query only; records accumulated
// before the failure are tagged and kept.
func (w *Worker) crawlOne(ctx context.Context, q crawler.Query) []crawler.Record {
	log := logger.ForQuery(q.Market, q.BrandModel, q.Year)

	records, reason, err := w.crawler.Crawl(ctx, q)

	brand, _ := helpers.GetSplitPart(q.BrandModel, "/", 0)
	model, _ := helpers.GetSplitPart(q.BrandModel, "/", 1)
	for i := range records {
		records[i].Brand = brand
		records[i].Model = model
		records[i].Year = q.Year
		records[i].Country = q.Market
	}

	if err != nil {
		log.Error().Err(err).Int("records", len(records)).Msg("Query failed")
		return records
	}

	log.Info().
		Int("records", len(records)).
		Int("pages", int(math.Ceil(float64(len(records))/20))).
		Str("stop_reason", string(reason)).
		Msg("Query completed")
	return records
}

// publish pushes each record of a market's deduplicated aggregate to that
// market's stream, one message per unique id
func (w *Worker) publish(log *logger.Logger, market string, records []crawler.Record) {
	if w.pub == nil {
		return
	}
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			log.Error().Err(err).Str("id", record.ID).Msg("Failed to marshal record")
			continue
		}
		if err := w.pub.Publish(market, data); err != nil {
			log.Error().Err(err).Str("id", record.ID).Msg("Failed to publish record")
		}
	}
}

// dedupeByID collapses records sharing an id, keeping the later observation
func dedupeByID(records []crawler.Record) []crawler.Record {
	byID := make(map[string]int, len(records))
	out := make([]crawler.Record, 0, len(records))
	for _, record := range records {
		if idx, ok := byID[record.ID]; ok {
			out[idx] = record
			continue
		}
		byID[record.ID] = len(out)
		out = append(out, record)
	}
	return out
}

// writeAggregates emits one tabular file per market plus, when configured,
// the normalized projection
func (w *Worker) writeAggregates(byMarket map[string][]crawler.Record) error {
	log := logger.ForWorker()

	var all []crawler.Record
	for market, records := range byMarket {
		// One row per unique id; queries can overlap, last write wins
		records = dedupeByID(records)
		if err := w.aggWriter.Write(market, records); err != nil {
			return err
		}
		w.publish(log, market, records)
		log.Info().Str("market", market).Int("records", len(records)).
			Msg("Wrote aggregate")
		all = append(all, records...)
	}

	if w.cleanWriter != nil && len(all) > 0 {
		cleaned := normalizer.Normalize(all)
		if err := w.cleanWriter.WriteClean(cleaned); err != nil {
			return err
		}
		log.Info().Int("records", len(cleaned)).Msg("Wrote normalized records")
	}

	return nil
}
