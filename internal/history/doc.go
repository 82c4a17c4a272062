// Package history persists scan attempts in SQLite.
//
// Every search round trip the controller resolves is written as one row,
// including responses discarded because their session ended ("abandoned").
// The ledger backs `petscan history` and the station status endpoint. Frame
// bytes are never stored; only their size is kept.
//
// Schema changes are additive migrations under migrations/, applied in
// lexical order on Open.
package history
