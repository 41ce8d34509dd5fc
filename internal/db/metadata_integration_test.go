//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// Integration tests for warehouse metadata.
// Run with: go test -tags=integration ./internal/db/...
// Requires PostgreSQL to be available.
// Set MARTLOAD_TEST_CONN environment variable to override connection string.

package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martload/martload/internal/db"
	"github.com/martload/martload/internal/testutil"
	"github.com/martload/martload/pkg/version"
)

func TestMetadataRoundTrip(t *testing.T) {
	base := testutil.SkipIfNoPostgres(t)
	connStr := testutil.CreateTestDB(t, base)
	pool := testutil.ConnectTestDB(t, connStr)
	ctx := context.Background()

	// Before init, the status command's metadata probe must fail.
	_, err := db.GetMetadataValue(ctx, pool, "initialized_at")
	require.Error(t, err)

	require.NoError(t, db.SaveMetadata(ctx, pool))

	got, err := db.GetMetadataValue(ctx, pool, "version")
	require.NoError(t, err)
	assert.Equal(t, version.Short(), got)

	initialized, err := db.GetMetadataValue(ctx, pool, "initialized_at")
	require.NoError(t, err)
	assert.NotEmpty(t, initialized)

	// Re-running init overwrites in place.
	require.NoError(t, db.SaveMetadata(ctx, pool))

	require.NoError(t, db.DropMetadata(ctx, pool))
	_, err = db.GetMetadataValue(ctx, pool, "initialized_at")
	assert.Error(t, err)
}
