package filecache

import "time"

// PassthroughTag marks records whose destination is an unmodified link or copy
// of the source.
const PassthroughTag = "passthrough"

// Record is the persisted state of one processed source file.
type Record struct {
	SourcePath      string
	DestinationPath string
	Hash            string
	ModTime         time.Time
	Size            int64
	Config          string
}

// SameStat reports whether the stored modification time and size match the
// observed ones. Times are compared at nanosecond precision.
func (r Record) SameStat(modTime time.Time, size int64) bool {
	return r.Size == size && r.ModTime.UnixNano() == modTime.UnixNano()
}

// TagSummary aggregates records sharing a processing tag.
type TagSummary struct {
	Config string
	Files  int
	Bytes  int64
}
