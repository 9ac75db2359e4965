// Package config loads, normalizes, and validates audiomirror configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies command-line overrides before
// validation. The Config type centralizes every knob a mirror run needs:
// source/destination trees, the record database, the transcode parameters,
// worker sizing, and log output.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical extension lists, and clear validation errors.
package config
