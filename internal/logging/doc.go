// Package logging assembles structured slog loggers and formatting helpers used
// across petscan components.
//
// It owns the console and JSON handlers, rotates log files through lumberjack,
// and exposes context-aware helpers so scan code can tag log lines with capture
// session IDs, attempt IDs, and correlation IDs. A bounded StreamHub lets the
// scan station serve recent log lines over its control API.
package logging
