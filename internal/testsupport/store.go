package testsupport

import (
	"context"
	"testing"

	"audiomirror/internal/config"
	"audiomirror/internal/filecache"
)

// MustOpenStore opens a filecache.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *filecache.Store {
	t.Helper()

	store, err := filecache.Open(cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("filecache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustLoadRecords returns every stored record.
func MustLoadRecords(t testing.TB, store *filecache.Store) map[string]filecache.Record {
	t.Helper()

	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	return records
}
