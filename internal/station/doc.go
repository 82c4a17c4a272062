// Package station runs the long-lived scan station: it owns the camera
// manager, the scan controller and the history ledger, and exposes them over
// a local HTTP control API.
//
// A single station may run per state directory; the flock-backed lock file in
// state_dir enforces that. The API binds to paths.api_bind and, when
// paths.api_token is set, requires a bearer token on every request.
package station
