package crawler

import (
	"context"
	"strconv"
	"strings"

	"as24-worker/logger"

	"github.com/PuerkitoBio/goquery"
)

// duplicateThreshold stops pagination once at least this share of a page's
// listings has already been seen this query. Overlapping result windows are
// common on the marketplace; without the threshold a crawl can chase
// reshuffled pages forever.
const duplicateThreshold = 0.50

// Crawler drives the fetch/extract/persist pipeline for single queries.
// One Crawler may serve many queries; all per-query state (seen ids, page
// counter, accumulator) lives inside Crawl.
type Crawler struct {
	fetcher     Fetcher
	sink        Sink
	urlTemplate string
}

// New creates a crawler from a fetcher chain, a persistence sink and a URL
// template carrying {market}, {model}, {year} and {page} placeholders.
func New(fetcher Fetcher, sink Sink, urlTemplate string) *Crawler {
	return &Crawler{
		fetcher:     fetcher,
		sink:        sink,
		urlTemplate: urlTemplate,
	}
}

// BuildURL substitutes the query and page number into the URL template.
// Plain string substitution: model identifiers must be pre-encoded.
func (c *Crawler) BuildURL(q Query, page int) string {
	return strings.NewReplacer(
		"{market}", q.Market,
		"{model}", q.BrandModel,
		"{year}", strconv.Itoa(q.Year),
		"{page}", strconv.Itoa(page),
	).Replace(c.urlTemplate)
}

// Crawl paginates through one query until the results run out, the duplicate
// threshold trips, or the pagination control goes away. It returns the
// accumulated records (one per unique id, last write wins) together with the
// stop reason. A fetch failure aborts this query only and surfaces as the
// error; everything accumulated so far is still returned.
func (c *Crawler) Crawl(ctx context.Context, q Query) ([]Record, StopReason, error) {
	log := logger.ForQuery(q.Market, q.BrandModel, q.Year)

	var (
		records []Record
		byID    = make(map[string]int)
		seen    = make(map[string]struct{})
		page    = 1
	)

	for {
		if err := ctx.Err(); err != nil {
			return records, "", err
		}

		url := c.BuildURL(q, page)
		pageText, err := c.fetcher.Fetch(url)
		if err != nil {
			return records, "", err
		}

		doc, err := ParsePage(pageText)
		if err != nil {
			return records, "", err
		}

		fragments, hasNext := ExtractListings(doc)
		if len(fragments) == 0 {
			log.Warn().Int("page", page).Str("url", url).
				Msg("No listings found; check selectors or page structure")
			return records, StopExhausted, nil
		}

		alreadySeen := 0
		for _, fragment := range fragments {
			record, err := ExtractRecord(fragment)
			if err != nil {
				// A single bad fragment never aborts the page or the query
				log.Error().Err(err).Int("page", page).Msg("Skipping listing")
				continue
			}

			if _, dup := seen[record.ID]; dup {
				alreadySeen++
				log.Debug().Str("id", record.ID).Msg("Duplicate listing, overwriting")
			}

			c.persist(log, q, fragment, record)

			if idx, ok := byID[record.ID]; ok {
				records[idx] = *record
			} else {
				byID[record.ID] = len(records)
				records = append(records, *record)
			}
			seen[record.ID] = struct{}{}
		}

		if float64(alreadySeen)/float64(len(fragments)) >= duplicateThreshold {
			log.Info().Int("page", page).Int("already_seen", alreadySeen).
				Msg("Reached threshold of seen listings, stopping pagination")
			return records, StopThreshold, nil
		}

		if !hasNext {
			return records, StopNoMorePages, nil
		}
		page++
	}
}

// persist stores the record and its raw fragment; a write failure is fatal
// for that one record only
func (c *Crawler) persist(log *logger.Logger, q Query, fragment *goquery.Selection, record *Record) {
	if c.sink == nil {
		return
	}

	rawHTML, err := goquery.OuterHtml(fragment)
	if err != nil {
		log.Error().Err(err).Str("id", record.ID).Msg("Failed to serialize fragment")
		return
	}

	if err := c.sink.Store(q.Market, record.ID, rawHTML, record); err != nil {
		log.Error().Err(err).Str("id", record.ID).Msg("Failed to store record")
	}
}
