// Package filecache persists the record of every source file the mirror has
// processed.
//
// One SQLite row per source path holds the destination it produced, the
// content hash, the modification time and size observed when it was
// processed, and the processing tag (format and bitrate, or the passthrough
// sentinel). Writes happen in bounded transactions so an interrupted run keeps
// every batch it already committed. BatchWriter buffers outcomes drained from
// the worker pipeline and flushes them through UpsertBatch.
package filecache
