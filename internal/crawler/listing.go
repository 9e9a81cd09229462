package crawler

import (
	"strings"

	"as24-worker/helpers"
	errs "as24-worker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// The marketplace ships CSS-module class names with build-specific suffixes
// (ListItem_title__k9EiS one build, ListItem_title__ndA4q the next). All
// matching below is on the stable prefix via substring attribute selectors,
// never exact class equality.
const (
	titleSelector    = "a[class*='ListItem_title__']"
	subtitleSelector = "span[class*='ListItem_version__']"
	priceSelector    = "p[class*='Price_price__']"
	vatSelector      = "div[class*='Price_vat__']"
	detailSelector   = "span[class*='VehicleDetailTable_item__']"

	vatMarkerText = "inkl. MwSt"
)

// detailFields maps the data-testid icon identity of a detail span to the
// record field it populates. Substring match: the attribute value carries
// surrounding noise ("VehicleDetailTable-mileage_road" and similar).
var detailFields = []struct {
	testID string
	get    func(*Record) string
	set    func(*Record, string)
}{
	{"mileage_road", func(r *Record) string { return r.Mileage }, func(r *Record, v string) { r.Mileage = v }},
	{"calendar", func(r *Record) string { return r.FirstRegistration }, func(r *Record, v string) { r.FirstRegistration = v }},
	{"gas_pump", func(r *Record) string { return r.FuelType }, func(r *Record, v string) { r.FuelType = v }},
	{"transmission", func(r *Record) string { return r.Transmission }, func(r *Record, v string) { r.Transmission = v }},
	{"speedometer", func(r *Record) string { return r.EnginePower }, func(r *Record, v string) { r.EnginePower = v }},
	{"leaf", func(r *Record) string { return r.CO2Emission }, func(r *Record, v string) { r.CO2Emission = v }},
	{"water_drop", func(r *Record) string { return r.FuelConsumption }, func(r *Record, v string) { r.FuelConsumption = v }},
}

// ExtractRecord extracts a structured record from one listing fragment.
// Each field comes from exactly one structural location; the first matching
// element per field wins. A fragment missing any required field fails with
// an ExtractionError carrying the fragment HTML.
func ExtractRecord(s *goquery.Selection) (*Record, error) {
	record := &Record{}

	titleSel := s.Find(titleSelector).First()
	if titleSel.Length() > 0 {
		if href, exists := titleSel.Attr("href"); exists {
			record.URL = strings.TrimSpace(href)
			record.ID = helpers.LastPathSegment(record.URL)
		}
		record.Subtitle = strings.TrimSpace(titleSel.Find(subtitleSelector).First().Text())
	}

	record.Price = strings.TrimSpace(s.Find(priceSelector).First().Text())

	s.Find(detailSelector).Each(func(i int, detail *goquery.Selection) {
		testID, _ := detail.Attr("data-testid")
		text := strings.TrimSpace(detail.Text())
		for _, field := range detailFields {
			// First occurrence per field wins when the markup yields duplicates
			if strings.Contains(testID, field.testID) {
				if field.get(record) == "" {
					field.set(record, text)
				}
				break
			}
		}
	})

	vatSel := s.Find(vatSelector).First()
	record.VATDeductible = vatSel.Length() > 0 &&
		strings.Contains(strings.TrimSpace(vatSel.Text()), vatMarkerText)

	if missing := record.missingRequired(); len(missing) > 0 {
		html, _ := goquery.OuterHtml(s)
		return nil, errs.NewExtraction(missing, html)
	}

	return record, nil
}

// missingRequired returns the names of required fields that are absent
func (r *Record) missingRequired() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"url", r.URL},
		{"price", r.Price},
		{"mileage", r.Mileage},
		{"first_registration", r.FirstRegistration},
		{"fuel_type", r.FuelType},
		{"transmission", r.Transmission},
		{"engine_power", r.EnginePower},
	}
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
