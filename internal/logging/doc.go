// Package logging assembles structured slog loggers and formatting helpers used
// across audiomirror.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes helpers so run code can tag every line with the run
// identifier and component. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
package logging
