package reconcile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"audiomirror/internal/filecache"
)

func TestBuildOrphanIndex(t *testing.T) {
	cache := map[string]filecache.Record{
		"/s/live.flac": {SourcePath: "/s/live.flac", Hash: "h1"},
		"/s/b.flac":    {SourcePath: "/s/b.flac", Hash: "h1"},
		"/s/a.flac":    {SourcePath: "/s/a.flac", Hash: "h1"},
		"/s/c.mp3":     {SourcePath: "/s/c.mp3", Hash: "h2"},
	}

	idx, prune := BuildOrphanIndex(cache, []string{"/s/live.flac", "/s/new.flac"})

	if want := []string{"/s/a.flac", "/s/b.flac", "/s/c.mp3"}; !reflect.DeepEqual(prune, want) {
		t.Fatalf("prune = %v, want %v", prune, want)
	}
	group := idx.Lookup("h1")
	if len(group) != 2 || group[0].SourcePath != "/s/a.flac" || group[1].SourcePath != "/s/b.flac" {
		t.Fatalf("unexpected h1 group %#v", group)
	}
	if len(idx.Lookup("missing")) != 0 || idx.Len() != 3 {
		t.Fatalf("unexpected index shape, len=%d", idx.Len())
	}

	var nilIdx *OrphanIndex
	if nilIdx.Lookup("h1") != nil || nilIdx.Len() != 0 {
		t.Fatal("nil index should be empty")
	}
}

func TestHashFileStreamsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")

	big := make([]byte, 3*hashBufferSize+123)
	for i := range big {
		big[i] = byte(i % 251)
	}
	if err := os.WriteFile(a, big, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, big, 0o644); err != nil {
		t.Fatal(err)
	}
	big[len(big)-1]++
	if err := os.WriteFile(c, big, 0o644); err != nil {
		t.Fatal(err)
	}

	ha, err := HashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := HashFile(b)
	hc, _ := HashFile(c)
	if ha != hb {
		t.Fatal("identical content must hash equally")
	}
	if ha == hc {
		t.Fatal("different content must hash differently")
	}
	if len(ha) != 64 {
		t.Fatalf("expected 32-byte hex digest, got %d chars", len(ha))
	}
	if _, err := HashFile(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
