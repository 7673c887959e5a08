//go:build integration

// Package integration provides end-to-end tests for the drive library.
//
// The tests replicate archives over real TCP connections between drives
// backed by disk storage. Tests that read source files over HTTP need Docker
// and serve the files from an nginx container started with testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
