// Package normalizer coerces the free-text field values of extracted records
// into typed values. It is a separate post-pass over the aggregate: source
// records are never mutated, and an unparseable value becomes nil rather
// than an error.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"as24-worker/internal/crawler"
)

var (
	// enginePowerRegexp captures the kW figure in "81 kW (110 PS)"
	enginePowerRegexp = regexp.MustCompile(`(\d+) kW`)
	// numberRegexp captures the first integer run, used for CO2 values
	numberRegexp = regexp.MustCompile(`(\d+)`)
)

// CleanRecord is the typed projection of one crawler.Record
type CleanRecord struct {
	ID                string     `json:"id"`
	URL               string     `json:"url"`
	Subtitle          string     `json:"subtitle,omitempty"`
	Price             *int       `json:"price"`
	Mileage           *int       `json:"mileage"`
	FirstRegistration *time.Time `json:"first_registration"`
	FuelType          string     `json:"fuel_type"`
	Transmission      string     `json:"transmission"`
	EnginePower       *int       `json:"engine_power"`
	CO2Emission       *int       `json:"co2_emission"`
	FuelConsumption   string     `json:"fuel_consumption,omitempty"`
	VATDeductible     bool       `json:"vat_deductible"`

	Brand   string `json:"brand,omitempty"`
	Model   string `json:"model,omitempty"`
	Year    int    `json:"year,omitempty"`
	Country string `json:"country,omitempty"`
}

// Normalize produces the typed projection of an aggregate of records
func Normalize(records []crawler.Record) []CleanRecord {
	cleaned := make([]CleanRecord, 0, len(records))
	for _, r := range records {
		cleaned = append(cleaned, CleanRecord{
			ID:                r.ID,
			URL:               r.URL,
			Subtitle:          r.Subtitle,
			Price:             ParsePrice(r.Price),
			Mileage:           ParseMileage(r.Mileage),
			FirstRegistration: ParseFirstRegistration(r.FirstRegistration),
			FuelType:          r.FuelType,
			Transmission:      r.Transmission,
			EnginePower:       ParseEnginePower(r.EnginePower),
			CO2Emission:       ParseCO2Emission(r.CO2Emission),
			FuelConsumption:   r.FuelConsumption,
			VATDeductible:     r.VATDeductible,
			Brand:             r.Brand,
			Model:             r.Model,
			Year:              r.Year,
			Country:           r.Country,
		})
	}
	return cleaned
}

// ParsePrice turns "12.345 €" into 12345. Currency symbol, thousands dots
// and trailing ",-" are stripped; anything else yields nil.
func ParsePrice(price string) *int {
	if price == "" {
		return nil
	}
	cleaned := strings.Trim(price, "€ ,-")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	return atoiOrNil(cleaned)
}

// ParseMileage turns "80.000 km" into 80000
func ParseMileage(mileage string) *int {
	cleaned := strings.Trim(mileage, " km")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	return atoiOrNil(cleaned)
}

// ParseEnginePower extracts the kW value from strings like "81 kW (110 PS)"
func ParseEnginePower(power string) *int {
	match := enginePowerRegexp.FindStringSubmatch(power)
	if match == nil {
		return nil
	}
	return atoiOrNil(match[1])
}

// ParseCO2Emission extracts the numeric value; "-" is the marketplace's
// placeholder for unknown and yields nil
func ParseCO2Emission(co2 string) *int {
	if co2 == "" || co2 == "-" {
		return nil
	}
	match := numberRegexp.FindStringSubmatch(co2)
	if match == nil {
		return nil
	}
	return atoiOrNil(match[1])
}

// ParseFirstRegistration parses the "MM/YYYY" registration date
func ParseFirstRegistration(reg string) *time.Time {
	t, err := time.Parse("01/2006", strings.TrimSpace(reg))
	if err != nil {
		return nil
	}
	return &t
}

func atoiOrNil(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
