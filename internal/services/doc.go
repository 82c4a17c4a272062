// Package services defines shared utilities consumed by the capture, search,
// and scan components.
//
// Key responsibilities:
//   - Context helpers that stamp capture session IDs, scan attempt IDs, scan
//     modes, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the scan
//     controller tell device failures from transport failures.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the client.
package services
