// Package main hosts the audiomirror CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration from the TOML file and
// command-line flags, builds the structured logger, and hands off to the
// mirror package. Terminal niceties such as the summary table, colors, and
// the optional progress bar live here so internal packages stay free of
// presentation concerns.
package main
