//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package main is the entry point for martload.
package main

import (
	"fmt"
	"os"

	"github.com/martload/martload/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
