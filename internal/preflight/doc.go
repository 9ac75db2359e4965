// Package preflight provides readiness checks for the filesystem paths and
// external binaries a mirror run depends on.
//
// These checks run in two contexts:
//   - mirror.Run calls RunAll before touching the record database. Any
//     failure aborts the run before a single file is processed.
//   - The CLI "audiomirror status" command renders the same results.
package preflight
