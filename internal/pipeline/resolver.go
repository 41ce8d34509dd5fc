//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"time"
)

// dateKeyLayout keys the per-batch date cache; dimension grain is one day.
const dateKeyLayout = "2006-01-02"

type cachedKey struct {
	sk          int64
	fingerprint string
}

// KeyResolver maps natural keys to surrogate keys, creating dimension rows
// on first sighting and reusing them afterward. It keeps a per-batch cache
// so each natural key hits the store at most once per batch, except when a
// later record carries drifted attributes, which must reach the store to
// apply the type-1 overwrite.
//
// Surrogate keys are assigned by the store, never by the resolver, so
// concurrent loads cannot collide.
type KeyResolver struct {
	store     Store
	customers map[string]cachedKey
	products  map[string]cachedKey
	dates     map[string]int64
}

// NewKeyResolver creates a resolver for one batch.
func NewKeyResolver(store Store) *KeyResolver {
	return &KeyResolver{
		store:     store,
		customers: make(map[string]cachedKey),
		products:  make(map[string]cachedKey),
		dates:     make(map[string]int64),
	}
}

// Resolve returns the surrogate keys for all three of a record's
// dimensions. Store connectivity failures carry ErrDimensionUnavailable
// in their chain; any other error is a record-level resolution failure.
func (r *KeyResolver) Resolve(ctx context.Context, rec *NormalizedRecord) (Keys, error) {
	customerSK, err := r.resolveCustomer(ctx, rec.Customer)
	if err != nil {
		return Keys{}, err
	}

	productSK, err := r.resolveProduct(ctx, rec.Product)
	if err != nil {
		return Keys{}, err
	}

	dateSK, err := r.resolveDate(ctx, rec.Timestamp)
	if err != nil {
		return Keys{}, err
	}

	return Keys{CustomerSK: customerSK, ProductSK: productSK, DateSK: dateSK}, nil
}

func (r *KeyResolver) resolveCustomer(ctx context.Context, c Customer) (int64, error) {
	fp := fmt.Sprintf("%s\x1f%s\x1f%s\x1f%s", c.Name, c.Segment, c.City, c.Country)
	if hit, ok := r.customers[c.Email]; ok && hit.fingerprint == fp {
		return hit.sk, nil
	}

	sk, err := r.store.ResolveCustomer(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("resolve customer %q: %w", c.Email, err)
	}

	r.customers[c.Email] = cachedKey{sk: sk, fingerprint: fp}
	return sk, nil
}

func (r *KeyResolver) resolveProduct(ctx context.Context, p Product) (int64, error) {
	fp := fmt.Sprintf("%s\x1f%s\x1f%s", p.Name, p.Category, p.Subcategory)
	if hit, ok := r.products[p.SKU]; ok && hit.fingerprint == fp {
		return hit.sk, nil
	}

	sk, err := r.store.ResolveProduct(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("resolve product %q: %w", p.SKU, err)
	}

	r.products[p.SKU] = cachedKey{sk: sk, fingerprint: fp}
	return sk, nil
}

func (r *KeyResolver) resolveDate(ctx context.Context, ts time.Time) (int64, error) {
	day := ts.UTC().Truncate(24 * time.Hour)
	key := day.Format(dateKeyLayout)
	if sk, ok := r.dates[key]; ok {
		return sk, nil
	}

	sk, err := r.store.ResolveDate(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("resolve date %q: %w", key, err)
	}

	r.dates[key] = sk
	return sk, nil
}
