// Package drivetype defines shared types used across the drive package and
// its internal packages. This avoids circular imports between drive and
// internal/record.
package drivetype
