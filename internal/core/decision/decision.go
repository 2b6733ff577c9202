package decision

import "github.com/underwoo/ncep-reanal/internal/domain"

// Decision is the result of evaluating one file.
type Decision struct {
	// Download is true when the remote file must be (re)fetched.
	Download bool

	// Reason explains why this decision was made.
	Reason string
}

// Decider decides whether a remote file must be fetched given local and
// remote metadata. Implementations must be pure: all I/O happens before the
// call, in whatever gathered the metadata.
type Decider interface {
	ShouldDownload(local domain.LocalMeta, remote domain.RemoteMeta) Decision
}

// FreshnessDecider implements the size-equality + strict-timestamp heuristic:
// a local copy counts as current only when its size matches the remote size
// and the remote modification time is strictly older than the local creation
// time. Size equality alone is not enough; a regenerated remote file can keep
// its size while its timestamp moves forward. This is a heuristic, not an
// integrity check.
type FreshnessDecider struct{}

// NewFreshnessDecider creates a new FreshnessDecider.
func NewFreshnessDecider() *FreshnessDecider {
	return &FreshnessDecider{}
}

// ShouldDownload implements the Decider interface. Rules are evaluated in
// priority order; the first that applies wins.
func (d *FreshnessDecider) ShouldDownload(local domain.LocalMeta, remote domain.RemoteMeta) Decision {
	// 1. No local file
	if !local.Exists {
		return Decision{Download: true, Reason: "local file does not exist"}
	}

	// 2. Local metadata unreadable. Same outcome as absence, distinct reason.
	if local.Err != nil {
		return Decision{Download: true, Reason: "local metadata unreadable"}
	}

	// 3. Remote metadata unavailable. Never assume the remote is unchanged
	// when nothing is known about it.
	if remote.Err != nil {
		return Decision{Download: true, Reason: "remote metadata unavailable"}
	}

	// 4. Same size and the remote copy predates the local one
	if remote.Size == local.Size && remote.ModTime.Before(local.CreatedAt) {
		return Decision{Download: false, Reason: "already retrieved"}
	}

	// 5. Everything else, including a smaller remote with an older timestamp
	return Decision{Download: true, Reason: "local copy does not match remote"}
}
