package reconcile

import (
	"sort"

	"audiomirror/internal/filecache"
)

// OrphanIndex groups records whose source is no longer a candidate by content
// hash. It is read-only once built.
type OrphanIndex struct {
	byHash  map[string][]filecache.Record
	records []filecache.Record
}

// BuildOrphanIndex derives the orphan set from the stored records and this
// run's candidate source paths. Entries within a hash group, and the returned
// prune list, are ordered by source path.
func BuildOrphanIndex(cache map[string]filecache.Record, candidates []string) (*OrphanIndex, []string) {
	live := make(map[string]struct{}, len(candidates))
	for _, path := range candidates {
		live[path] = struct{}{}
	}

	idx := &OrphanIndex{byHash: make(map[string][]filecache.Record)}
	for path, rec := range cache {
		if _, ok := live[path]; ok {
			continue
		}
		idx.records = append(idx.records, rec)
	}
	sort.Slice(idx.records, func(i, j int) bool {
		return idx.records[i].SourcePath < idx.records[j].SourcePath
	})

	prune := make([]string, 0, len(idx.records))
	for _, rec := range idx.records {
		idx.byHash[rec.Hash] = append(idx.byHash[rec.Hash], rec)
		prune = append(prune, rec.SourcePath)
	}
	return idx, prune
}

// Lookup returns the orphans sharing hash. The slice must not be modified.
func (o *OrphanIndex) Lookup(hash string) []filecache.Record {
	if o == nil {
		return nil
	}
	return o.byHash[hash]
}

// Records returns every orphan in source path order.
func (o *OrphanIndex) Records() []filecache.Record {
	if o == nil {
		return nil
	}
	return o.records
}

// Len reports the number of orphans.
func (o *OrphanIndex) Len() int {
	if o == nil {
		return 0
	}
	return len(o.records)
}
