package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"as24-worker/config"
	"as24-worker/internal/crawler"
	"as24-worker/internal/normalizer"
	"as24-worker/services/publisher"
	"as24-worker/services/storage"

	"github.com/stretchr/testify/assert"
)

const testPage = `<html><body><main>
<article class="cldt-summary-full-item">
  <a class="ListItem_title__ndA4q" href="/angebote/vw-golf-aaa111"><h2>VW Golf</h2></a>
  <p class="Price_price__APlgs">10.000 €</p>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-mileage_road">80.000 km</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-calendar">07/2018</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-gas_pump">Benzin</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-transmission">Schaltgetriebe</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-speedometer">81 kW (110 PS)</span>
</article>
<article class="cldt-summary-full-item">
  <a class="ListItem_title__ndA4q" href="/angebote/vw-golf-bbb222"><h2>VW Golf</h2></a>
  <p class="Price_price__APlgs">11.500 €</p>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-mileage_road">60.000 km</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-calendar">03/2018</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-gas_pump">Benzin</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-transmission">Automatik</span>
  <span class="VehicleDetailTable_item__4n35N" data-testid="VehicleDetailTable-speedometer">110 kW (150 PS)</span>
</article>
<ul class="pagination">
  <li class="prev-next"><a>&laquo;</a></li>
  <li class="prev-next pagination-item--disabled"><a>&raquo;</a></li>
</ul>
</main></body></html>`

// mockSink drops artifacts; the file sink has its own tests
type mockSink struct {
	mu     sync.Mutex
	stored int
}

func (m *mockSink) Store(market, id, rawHTML string, record *crawler.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored++
	return nil
}

// mockAggWriter captures per-market aggregates
type mockAggWriter struct {
	mu       sync.Mutex
	byMarket map[string][]crawler.Record
}

var _ storage.AggregateWriter = (*mockAggWriter)(nil)

func newMockAggWriter() *mockAggWriter {
	return &mockAggWriter{byMarket: make(map[string][]crawler.Record)}
}

func (m *mockAggWriter) Write(market string, records []crawler.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMarket[market] = records
	return nil
}

func (m *mockAggWriter) Close() error { return nil }

// mockCleanWriter captures the normalized projection
type mockCleanWriter struct {
	records []normalizer.CleanRecord
}

var _ storage.CleanWriter = (*mockCleanWriter)(nil)

func (m *mockCleanWriter) WriteClean(records []normalizer.CleanRecord) error {
	m.records = records
	return nil
}

func (m *mockCleanWriter) Close() error { return nil }

// mockPublisher counts published records per market
type mockPublisher struct {
	mu        sync.Mutex
	published map[string]int
	trimmed   bool
}

var _ publisher.Publisher = (*mockPublisher)(nil)

func newMockPublisher() *mockPublisher {
	return &mockPublisher{published: make(map[string]int)}
}

func (m *mockPublisher) Publish(market string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[market]++
	return nil
}

func (m *mockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed = true
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Markets:     []string{"D"},
		BrandModels: []string{"volkswagen/golf"},
		YearFrom:    2018,
		YearTo:      2018,
		URLTemplate: "https://example.com/lst/{model}?cy={market}&fregfrom={year}&page={page}",
		WorkerCount: 2,
	}
}

// staticFetcher serves the same page for page 1 of every query
func staticFetcher() crawler.Fetcher {
	return crawler.FetcherFunc(func(url string) (string, error) {
		if !strings.Contains(url, "page=1") {
			return "", fmt.Errorf("unexpected URL: %s", url)
		}
		return testPage, nil
	})
}

func TestWorkerRun(t *testing.T) {
	cfg := testConfig()
	sink := &mockSink{}
	agg := newMockAggWriter()
	clean := &mockCleanWriter{}
	pub := newMockPublisher()

	w := NewWorker(cfg, staticFetcher(), sink, pub, agg, clean)
	assert.NoError(t, w.Run(context.Background()))

	records := agg.byMarket["D"]
	assert.Equal(t, 2, len(records))
	assert.Equal(t, 2, sink.stored)

	// Provenance is stamped by the driver, not the extractor
	for _, r := range records {
		assert.Equal(t, "volkswagen", r.Brand)
		assert.Equal(t, "golf", r.Model)
		assert.Equal(t, 2018, r.Year)
		assert.Equal(t, "D", r.Country)
	}

	// Normalized projection went to the clean writer
	assert.Equal(t, 2, len(clean.records))
	priceByID := make(map[string]*int)
	for _, c := range clean.records {
		priceByID[c.ID] = c.Price
	}
	assert.Equal(t, 10000, *priceByID["vw-golf-aaa111"])
	assert.Equal(t, 11500, *priceByID["vw-golf-bbb222"])

	// Each accepted record was published, then the streams were trimmed
	assert.Equal(t, 2, pub.published["D"])
	assert.True(t, pub.trimmed)
}

func TestWorkerRunDedupesAcrossQueries(t *testing.T) {
	// Two years return the same two listings; the per-market aggregate
	// keeps one row per id
	cfg := testConfig()
	cfg.YearTo = 2019

	agg := newMockAggWriter()
	w := NewWorker(cfg, staticFetcher(), &mockSink{}, nil, agg, nil)
	assert.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 2, len(agg.byMarket["D"]))
}

func TestWorkerRunFailedQueryDoesNotAbortRun(t *testing.T) {
	cfg := testConfig()
	cfg.Markets = []string{"D", "NL"}

	fetcher := crawler.FetcherFunc(func(url string) (string, error) {
		if strings.Contains(url, "cy=NL") {
			return "", fmt.Errorf("connection refused")
		}
		return testPage, nil
	})

	agg := newMockAggWriter()
	w := NewWorker(cfg, fetcher, &mockSink{}, nil, agg, nil)
	assert.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 2, len(agg.byMarket["D"]))
	assert.Empty(t, agg.byMarket["NL"])
}

func TestWorkerRunTagsRecordsFromFailedQuery(t *testing.T) {
	// Page 1 succeeds, page 2 fails: the partial records still reach the
	// aggregate fully tagged with provenance
	cfg := testConfig()
	firstPage := strings.Replace(testPage, "prev-next pagination-item--disabled", "prev-next", 1)
	fetcher := crawler.FetcherFunc(func(url string) (string, error) {
		if strings.Contains(url, "page=1") {
			return firstPage, nil
		}
		return "", fmt.Errorf("connection reset")
	})

	agg := newMockAggWriter()
	w := NewWorker(cfg, fetcher, &mockSink{}, nil, agg, nil)
	assert.NoError(t, w.Run(context.Background()))

	records := agg.byMarket["D"]
	assert.Equal(t, 2, len(records))
	for _, r := range records {
		assert.Equal(t, "volkswagen", r.Brand)
		assert.Equal(t, "golf", r.Model)
		assert.Equal(t, 2018, r.Year)
		assert.Equal(t, "D", r.Country)
	}
}

func TestWorkerRunPublishesOncePerID(t *testing.T) {
	// Two overlapping queries observe the same listings; the stream gets one
	// message per unique id, matching the aggregate
	cfg := testConfig()
	cfg.YearTo = 2019

	pub := newMockPublisher()
	w := NewWorker(cfg, staticFetcher(), &mockSink{}, pub, newMockAggWriter(), nil)
	assert.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 2, pub.published["D"])
	assert.True(t, pub.trimmed)
}

func TestDedupeByID(t *testing.T) {
	records := []crawler.Record{
		{ID: "a", Price: "1 €"},
		{ID: "b", Price: "2 €"},
		{ID: "a", Price: "3 €"},
	}

	out := dedupeByID(records)
	assert.Equal(t, 2, len(out))
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "3 €", out[0].Price, "later observation wins")
	assert.Equal(t, "b", out[1].ID)
}
