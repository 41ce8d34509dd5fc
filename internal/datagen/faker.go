//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen generates synthetic retail-sales extracts.
package datagen

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Faker provides fake data generation using gofakeit.
type Faker struct {
	faker *gofakeit.Faker
}

// NewFaker creates a new Faker with a random seed.
func NewFaker() *Faker {
	return &Faker{
		faker: gofakeit.New(uint64(time.Now().UnixNano())),
	}
}

// NewFakerWithSeed creates a new Faker with a specific seed for
// reproducibility.
func NewFakerWithSeed(seed uint64) *Faker {
	return &Faker{
		faker: gofakeit.New(seed),
	}
}

// Email generates a random email address.
func (f *Faker) Email() string {
	return f.faker.Email()
}

// Name generates a random full name.
func (f *Faker) Name() string {
	return f.faker.Name()
}

// City generates a random city name.
func (f *Faker) City() string {
	return f.faker.City()
}

// Country generates a random country name.
func (f *Faker) Country() string {
	return f.faker.Country()
}

// ProductName generates a random product name.
func (f *Faker) ProductName() string {
	return f.faker.ProductName()
}

// Int generates a random integer in [min, max].
func (f *Faker) Int(min, max int) int {
	return f.faker.IntRange(min, max)
}

// Float generates a random float in [min, max).
func (f *Faker) Float(min, max float64) float64 {
	return f.faker.Float64Range(min, max)
}

// Element picks a random element from the slice.
func Element[T any](f *Faker, items []T) T {
	return items[f.faker.IntRange(0, len(items)-1)]
}

// SKU generates a product SKU like "ELEC-04217".
func (f *Faker) SKU(prefix string) string {
	return fmt.Sprintf("%s-%05d", prefix, f.faker.IntRange(1, 99999))
}

// DateBetween generates a random day in [start, end].
func (f *Faker) DateBetween(start, end time.Time) time.Time {
	return f.faker.DateRange(start, end)
}
