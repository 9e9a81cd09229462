package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	errs "as24-worker/pkg/errors"
)

// Default search filters, matching the marketplace query the worker was
// built around. All of them can be overridden through the environment.
const (
	defaultMinPrice  = 3000
	defaultMaxPrice  = 12500
	defaultMaxKM     = 150000
	defaultSortOrder = "age"
)

// defaultBrandModels is the stock set of brand/model search identifiers.
// Identifiers must be pre-encoded for URL use; they are substituted into the
// URL template verbatim.
var defaultBrandModels = []string{
	"ford/fiesta",
	"ford/focus",
	"ford/mondeo",
	"volkswagen/golf",
	"volkswagen/passat",
	"volkswagen/polo",
	"audi/a3",
	"audi/a4",
	"audi/a6",
	"bmw/1er-(alle)",
	"bmw/3er-(alle)",
	"skoda/fabia",
	"skoda/octavia",
	"skoda/superb",
	"toyota/auris",
	"toyota/avensis",
	"mercedes/a-klasse",
	"mercedes/c-klasse",
	"mercedes/e-klasse",
	"honda/civic",
	"honda/accord",
	"mazda/3",
	"mazda/6",
	"peugeot/308",
	"peugeot/508",
	"renault/megane",
	"renault/talisman",
	"hyundai/i30",
	"hyundai/i40",
	"kia/ceed",
	"kia/optima",
	"nissan/qashqai",
	"nissan/juke",
}

// Config represents the application configuration
type Config struct {
	// Redis configuration (record publisher)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int
	PublishEnabled       bool

	// Memcache configuration (page content cache)
	MemcacheAddr string
	CacheEnabled bool

	// Crawl targets
	Markets     []string
	BrandModels []string
	YearFrom    int
	YearTo      int

	// URL template with {market}/{model}/{year}/{page} placeholders plus
	// the static search filters
	URLTemplate string

	// Storage
	DataDir     string
	OutputDir   string
	DatabaseURL string

	// Batch driver
	WorkerCount int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	yearFrom, _ := strconv.Atoi(getEnv("YEAR_FROM", "2010"))
	yearTo, _ := strconv.Atoi(getEnv("YEAR_TO", "2023"))
	workerCount, _ := strconv.Atoi(getEnv("WORKER_COUNT", "4"))

	return &Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "carlistings"),
		RedisStreamMaxLength: streamMaxLen,
		PublishEnabled:       getEnv("PUBLISH_ENABLED", "false") == "true",
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CacheEnabled:         getEnv("PAGE_CACHE_ENABLED", "true") == "true",
		Markets:              splitList(getEnv("MARKETS", "D,NL")),
		BrandModels:          brandModelsFromEnv(),
		YearFrom:             yearFrom,
		YearTo:               yearTo,
		URLTemplate:          getEnv("URL_TEMPLATE", defaultURLTemplate()),
		DataDir:              getEnv("DATA_DIR", "data/as24"),
		OutputDir:            getEnv("OUTPUT_DIR", "data/aggregate"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		WorkerCount:          workerCount,
		Environment:          getEnv("AS24_ENVIRONMENT", "development"),
	}
}

// Validate checks that the loaded configuration is usable
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return errs.NewConfiguration("no markets configured", nil)
	}
	if len(c.BrandModels) == 0 {
		return errs.NewConfiguration("no brand/model combinations configured", nil)
	}
	if c.YearFrom > c.YearTo {
		return errs.NewConfiguration(
			fmt.Sprintf("invalid year range %d-%d", c.YearFrom, c.YearTo), nil)
	}
	if c.WorkerCount < 1 {
		return errs.NewConfiguration("worker count must be at least 1", nil)
	}
	for _, ph := range []string{"{market}", "{model}", "{year}", "{page}"} {
		if !strings.Contains(c.URLTemplate, ph) {
			return errs.NewConfiguration("URL template missing placeholder "+ph, nil)
		}
	}
	return nil
}

// Years expands the configured year range into the list of model years
func (c *Config) Years() []int {
	years := make([]int, 0, c.YearTo-c.YearFrom+1)
	for y := c.YearFrom; y <= c.YearTo; y++ {
		years = append(years, y)
	}
	return years
}

// defaultURLTemplate assembles the search URL with the stock static filters
func defaultURLTemplate() string {
	minPrice, _ := strconv.Atoi(getEnv("PRICE_FROM", strconv.Itoa(defaultMinPrice)))
	maxPrice, _ := strconv.Atoi(getEnv("PRICE_TO", strconv.Itoa(defaultMaxPrice)))
	maxKM, _ := strconv.Atoi(getEnv("MILEAGE_TO", strconv.Itoa(defaultMaxKM)))
	sort := getEnv("SORT_ORDER", defaultSortOrder)

	return "https://www.autoscout24.de/lst/{model}/ft_benzin" +
		"?atype=C&cy={market}&page={page}" +
		"&damaged_listing=exclude&desc=1&fuel=B" +
		fmt.Sprintf("&kmto=%d", maxKM) +
		"&ocs_listing=include&powertype=kw" +
		fmt.Sprintf("&sort=%s", sort) +
		"&ustate=N%2CU" +
		"&fregfrom={year}&fregto={year}" +
		fmt.Sprintf("&pricefrom=%d&priceto=%d", minPrice, maxPrice)
}

func brandModelsFromEnv() []string {
	if v := os.Getenv("BRAND_MODELS"); v != "" {
		return splitList(v)
	}
	return defaultBrandModels
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
