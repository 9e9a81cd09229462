package crawler

// Query identifies one crawl target: a market, a brand/model search
// identifier and a first-registration year. The page number is appended by
// the pagination loop; queries themselves are immutable.
type Query struct {
	Market     string
	BrandModel string
	Year       int
}

// Record is the extracted, semi-structured representation of one listing.
// Field values stay in their source text form ("12.345 €", "80.000 km");
// the normalizer produces the typed projection.
//
// Brand, Model, Year and Country are provenance fields stamped by the batch
// driver, not the extractor.
type Record struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Subtitle          string `json:"subtitle,omitempty"`
	Price             string `json:"price"`
	Mileage           string `json:"mileage"`
	FirstRegistration string `json:"first_registration"`
	FuelType          string `json:"fuel_type"`
	Transmission      string `json:"transmission"`
	EnginePower       string `json:"engine_power"`
	CO2Emission       string `json:"co2_emission,omitempty"`
	FuelConsumption   string `json:"fuel_consumption,omitempty"`
	VATDeductible     bool   `json:"vat_deductible"`

	Brand   string `json:"brand,omitempty"`
	Model   string `json:"model,omitempty"`
	Year    int    `json:"year,omitempty"`
	Country string `json:"country,omitempty"`
}

// StopReason says why a pagination loop terminated
type StopReason string

const (
	// StopExhausted means a page came back with zero listings
	StopExhausted StopReason = "exhausted"
	// StopThreshold means at least half the listings on a page were already seen
	StopThreshold StopReason = "threshold"
	// StopNoMorePages means the pagination control was absent or disabled
	StopNoMorePages StopReason = "no-more-pages"
)

// Sink persists one accepted record and its raw source fragment, keyed by the
// record id under a market-scoped location. Implementations must be
// idempotent: re-storing the same id overwrites both artifacts.
type Sink interface {
	Store(market, id, rawHTML string, record *Record) error
}
