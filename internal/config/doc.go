// Package config loads, normalizes, and validates petscan configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PETSCAN_API_URL and PETSCAN_API_TOKEN. The Config type centralizes every knob
// the scan station and CLI need, from capture devices and scan thresholds to the
// registry endpoint.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
