// Package scan drives nose-print identification.
//
// Controller is a mutex-guarded state machine over four modes: selecting,
// live camera, single photo and profile shown. In live mode an interval
// ticker samples the camera and submits one search at a time; a tick that
// arrives while a search is pending is dropped. Every stop, switch, reset,
// device loss and disposal goes through one teardown path that cancels the
// ticker, releases the camera and bumps the generation token, so late search
// and profile responses from an abandoned session are discarded.
package scan
