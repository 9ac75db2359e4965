// Package mirror runs one reconciliation pass of a source tree into its
// lossy mirror.
//
// Run owns the whole lifecycle: preflight checks, the run lock beside the
// record database, scanning, orphan detection, the worker pipeline with its
// single aggregating consumer, batched persistence, and the final cleanup of
// outputs whose sources disappeared. Everything before the first worker
// starts is a setup step and fails with ErrSetup. Once workers run, only a
// persistence failure (ErrStorage) or cancellation ends the run early, and in
// both cases work already committed stays durable.
package mirror
