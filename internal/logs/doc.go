// Package logs reads station logs for the CLI.
//
// StreamClient pages through the running station's in-memory log hub over
// /api/logs, optionally blocking for new events. When no station is reachable
// Tail reads the rotated JSON log file directly, and ParseLine turns those
// lines back into the same event shape so both sources print identically via
// FormatEvent.
package logs
