package filecache

import "context"

// BatchWriter buffers records and upserts them in bounded transactions. It is
// not safe for concurrent use; the pipeline aggregator is its only caller.
type BatchWriter struct {
	store   *Store
	size    int
	pending []Record
	written int
}

// NewBatchWriter returns a writer flushing every size records. A size of zero
// or less selects DefaultBatchSize.
func NewBatchWriter(store *Store, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{store: store, size: size, pending: make([]Record, 0, size)}
}

// Add queues rec, flushing when the batch is full.
func (w *BatchWriter) Add(ctx context.Context, rec Record) error {
	w.pending = append(w.pending, rec)
	if len(w.pending) >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits any queued records. On failure the batch is discarded so a
// later flush never re-sends rows from a failed transaction.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	batch := w.pending
	w.pending = make([]Record, 0, w.size)
	if err := w.store.UpsertBatch(ctx, batch); err != nil {
		return err
	}
	w.written += len(batch)
	return nil
}

// Written reports how many records have been committed.
func (w *BatchWriter) Written() int {
	return w.written
}
