// Package reconcile decides and performs the work for one source file.
//
// Given a candidate path and read-only snapshots of the stored records and the
// orphan index, Engine.Process either skips the file, relocates an orphaned
// output whose content hash matches (a reclaim), transcodes it, or passes it
// through. Snapshots are never mutated after construction, so any number of
// workers may share one Engine.
//
// Reclaim is optimistic: two workers may race for the same orphan and the
// filesystem rename decides the winner. A loser falls back to regenerating
// its output and never reports an error for the lost race.
package reconcile
