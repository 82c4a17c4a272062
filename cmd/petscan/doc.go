// Package main hosts the petscan CLI entrypoint and command graph.
//
// Commands either drive a scan pipeline in-process (live, photo), talk to the
// pet registry directly (profile, register), read local state (history,
// status), or run the scan station daemon (serve). Configuration resolution
// and logger setup live in commandContext so subcommands only wire output.
package main
