//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Checksum computes the xxhash64 digest of a file's content. The digest is
// the batch identity: re-reading an unchanged extract yields the same
// batch id, which is what makes reruns no-ops.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
