package domain

import "time"

// LocalMeta describes the state of a mirrored file on disk at decision time.
type LocalMeta struct {
	// Exists is false only when absence is certain (stat returned not-exist).
	Exists bool

	// Size in bytes. Undefined when Exists is false or Err is set.
	Size int64

	// CreatedAt is the freshness baseline for the local copy. Files under
	// the archive root are only ever written by this tool, so the mtime of
	// a mirrored file is the time it was retrieved.
	CreatedAt time.Time

	// Err records a metadata read failure other than absence. The sync
	// outcome is the same as for a missing file; only the diagnostic differs.
	Err error
}

// RemoteMeta describes a remote file as reported by the transfer session.
type RemoteMeta struct {
	Size    int64
	ModTime time.Time

	// Err records a size or modtime retrieval failure. Unavailable metadata
	// always forces a download, never a skip.
	Err error
}

// Outcome is the per-file result of one sync evaluation.
type Outcome int

const (
	// OutcomeSkipped means the local copy is already current.
	OutcomeSkipped Outcome = iota
	// OutcomeDownloaded means the file was fetched successfully.
	OutcomeDownloaded
	// OutcomeFailed means the transfer or a filesystem write failed.
	OutcomeFailed
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Summary aggregates the results of one full mirror run.
type Summary struct {
	// DirsScanned counts date directories whose files were evaluated.
	DirsScanned int

	// DirsSkipped counts entries that did not parse as date directories or
	// whose local output directory or remote listing could not be obtained.
	DirsSkipped int

	Downloaded int
	Skipped    int
	Failed     int
}

// Add folds a single file outcome into the summary.
func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeDownloaded:
		s.Downloaded++
	case OutcomeFailed:
		s.Failed++
	}
}
