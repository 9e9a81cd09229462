package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"as24-worker/internal/normalizer"
)

// PostgresWriter persists normalized listing records to PostgreSQL.
// Rows are upserted on the (country, id) key so replayed batch runs behave
// like the file sink: last write wins.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection, runs schema migration, and returns
// a ready-to-use writer.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS car_listings (
			country            VARCHAR(8)  NOT NULL,
			id                 TEXT        NOT NULL,
			url                TEXT        NOT NULL,
			subtitle           TEXT        NOT NULL DEFAULT '',
			price              INTEGER,
			mileage            INTEGER,
			first_registration DATE,
			fuel_type          TEXT        NOT NULL DEFAULT '',
			transmission       TEXT        NOT NULL DEFAULT '',
			engine_power       INTEGER,
			co2_emission       INTEGER,
			fuel_consumption   TEXT        NOT NULL DEFAULT '',
			vat_deductible     BOOLEAN     NOT NULL DEFAULT FALSE,
			brand              TEXT        NOT NULL DEFAULT '',
			model              TEXT        NOT NULL DEFAULT '',
			model_year         INTEGER,
			crawled_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (country, id)
		);

		CREATE INDEX IF NOT EXISTS idx_car_listings_price ON car_listings(price);
		CREATE INDEX IF NOT EXISTS idx_car_listings_brand ON car_listings(brand, model);
		CREATE INDEX IF NOT EXISTS idx_car_listings_year  ON car_listings(model_year);
	`)
	return err
}

// WriteClean batch-upserts the typed projection
func (pw *PostgresWriter) WriteClean(records []normalizer.CleanRecord) error {
	if len(records) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := pw.insertBatch(records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []normalizer.CleanRecord) error {
	const cols = 16
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, r := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for j := 0; j < cols; j++ {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.Country, r.ID, r.URL, r.Subtitle, r.Price, r.Mileage,
			r.FirstRegistration, r.FuelType, r.Transmission, r.EnginePower,
			r.CO2Emission, r.FuelConsumption, r.VATDeductible,
			r.Brand, r.Model, r.Year)
	}

	query := fmt.Sprintf(`
		INSERT INTO car_listings (
			country, id, url, subtitle, price, mileage, first_registration,
			fuel_type, transmission, engine_power, co2_emission,
			fuel_consumption, vat_deductible, brand, model, model_year
		)
		VALUES %s
		ON CONFLICT (country, id) DO UPDATE SET
			url = EXCLUDED.url,
			subtitle = EXCLUDED.subtitle,
			price = EXCLUDED.price,
			mileage = EXCLUDED.mileage,
			first_registration = EXCLUDED.first_registration,
			fuel_type = EXCLUDED.fuel_type,
			transmission = EXCLUDED.transmission,
			engine_power = EXCLUDED.engine_power,
			co2_emission = EXCLUDED.co2_emission,
			fuel_consumption = EXCLUDED.fuel_consumption,
			vat_deductible = EXCLUDED.vat_deductible,
			brand = EXCLUDED.brand,
			model = EXCLUDED.model,
			model_year = EXCLUDED.model_year,
			crawled_at = NOW()
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

// Close closes the database connection
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
