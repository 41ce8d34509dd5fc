//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/martload/martload/internal/logging"
)

// Product categories mirrored from the warehouse's reporting taxonomy.
var categories = map[string][]string{
	"Electronics": {"Phones", "Audio", "Accessories"},
	"Clothing":    {"Shirts", "Outerwear", "Footwear"},
	"Home":        {"Kitchen", "Furniture", "Decor"},
	"Sports":      {"Outdoor", "Fitness", "Team Sports"},
	"Books":       {"Fiction", "Reference", "Children"},
}

var segments = []string{"Consumer", "Corporate", "Home Office"}

// ExtractConfig controls sample extract generation.
type ExtractConfig struct {
	Rows int

	// Seed makes output reproducible when non-zero.
	Seed uint64

	// BadRate is the fraction of rows written malformed so the reject
	// path has something to chew on.
	BadRate float64

	// Customers and Products bound the natural-key pools, so extracts
	// contain repeated sightings of the same keys.
	Customers int
	Products  int
}

// WriteExtract writes a synthetic retail-sales CSV extract.
func WriteExtract(path string, cfg ExtractConfig) error {
	if cfg.Customers <= 0 {
		cfg.Customers = max(cfg.Rows/10, 1)
	}
	if cfg.Products <= 0 {
		cfg.Products = max(cfg.Rows/20, 1)
	}

	var faker *Faker
	if cfg.Seed != 0 {
		faker = NewFakerWithSeed(cfg.Seed)
	} else {
		faker = NewFaker()
	}

	customers := make([][]string, cfg.Customers) // email, name, segment, city, country
	for i := range customers {
		customers[i] = []string{
			faker.Email(), faker.Name(), Element(faker, segments),
			faker.City(), faker.Country(),
		}
	}

	categoryNames := make([]string, 0, len(categories))
	for name := range categories {
		categoryNames = append(categoryNames, name)
	}

	products := make([][]string, cfg.Products) // sku, name, category, subcategory
	for i := range products {
		category := Element(faker, categoryNames)
		products[i] = []string{
			faker.SKU(category[:4]), faker.ProductName(),
			category, Element(faker, categories[category]),
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"transaction_id", "timestamp", "customer_email", "customer_name",
		"segment", "city", "country", "product_sku", "product_name",
		"category", "subcategory", "quantity", "unit_price", "currency",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	start := time.Now().AddDate(0, -3, 0)
	end := time.Now()

	for i := 0; i < cfg.Rows; i++ {
		customer := Element(faker, customers)
		product := Element(faker, products)

		row := []string{
			fmt.Sprintf("TX-%08d", i+1),
			faker.DateBetween(start, end).Format("2006-01-02"),
			customer[0], customer[1], customer[2], customer[3], customer[4],
			product[0], product[1], product[2], product[3],
			strconv.Itoa(faker.Int(1, 12)),
			fmt.Sprintf("%.2f", faker.Float(0.5, 500)),
			"USD",
		}

		if cfg.BadRate > 0 && faker.Float(0, 1) < cfg.BadRate {
			corrupt(faker, row)
		}

		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	logging.Info().
		Str("path", path).
		Int("rows", cfg.Rows).
		Float64("bad_rate", cfg.BadRate).
		Msg("Sample extract written")
	return nil
}

// corrupt damages one field so the row fails normalization.
func corrupt(faker *Faker, row []string) {
	switch faker.Int(0, 3) {
	case 0:
		row[2] = "" // missing customer email
	case 1:
		row[11] = "-" + row[11] // negative quantity
	case 2:
		row[12] = "n/a" // unparseable price
	case 3:
		row[1] = "someday" // unparseable timestamp
	}
}
