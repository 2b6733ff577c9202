// Package mirror walks the remote date directories and keeps the local
// month-partitioned archive current.
package mirror

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/underwoo/ncep-reanal/internal/core/decision"
	"github.com/underwoo/ncep-reanal/internal/domain"
	"github.com/underwoo/ncep-reanal/internal/logger"
	"github.com/underwoo/ncep-reanal/internal/nameparse"
	"github.com/underwoo/ncep-reanal/internal/transfer"
)

// Walker orchestrates one mirror run over an established session.
//
// Errors fall into exactly two tiers. Fatal: the pre-flight root check, base
// path navigation and the top-level listing; these abort the run. Everything
// below that is local: a bad directory name, a failed mkdir, a failed
// per-directory listing or a failed transfer is logged and the walker moves
// on to the next sibling unit of work.
type Walker struct {
	session    transfer.Session
	parser     *nameparse.Parser
	decider    decision.Decider
	remotePath string
	localRoot  string
	log        logger.Logger
}

// New creates a Walker. remotePath is the base directory on the server;
// localRoot is the archive root, which must already exist.
func New(session transfer.Session, parser *nameparse.Parser, decider decision.Decider, remotePath, localRoot string, log logger.Logger) *Walker {
	if log == nil {
		log = logger.NullLogger{}
	}
	return &Walker{
		session:    session,
		parser:     parser,
		decider:    decider,
		remotePath: remotePath,
		localRoot:  localRoot,
		log:        log,
	}
}

// Run performs a full mirror pass. The returned error is non-nil only for
// fatal-tier failures; per-directory and per-file failures are reflected in
// the summary counts.
func (w *Walker) Run(ctx context.Context) (domain.Summary, error) {
	var sum domain.Summary

	info, err := os.Stat(w.localRoot)
	if err != nil || !info.IsDir() {
		return sum, domain.Fatal(fmt.Errorf("%w: %q, create it and try again", domain.ErrRootMissing, w.localRoot))
	}

	if err := w.session.ChangeDir(w.remotePath); err != nil {
		return sum, domain.Fatal(fmt.Errorf("%w: %s: %v", domain.ErrNavigate, w.remotePath, err))
	}

	entries, err := w.session.List("")
	if err != nil {
		return sum, domain.Fatal(fmt.Errorf("%w: %s: %v", domain.ErrList, w.remotePath, err))
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		date, ok := w.parser.ParseDirDate(entry)
		if !ok {
			w.log.Warn("entry does not name a date directory, skipping", "entry", entry)
			sum.DirsSkipped++
			continue
		}

		outDir := filepath.Join(w.localRoot, w.parser.OutputSubdir(date))
		if err := os.MkdirAll(outDir, 0755); err != nil {
			w.log.Warn("unable to create output directory, skipping all files in directory",
				"dir", entry, "output", outDir, "error", err)
			sum.DirsSkipped++
			continue
		}

		files, err := w.session.List(entry)
		if err != nil {
			w.log.Warn("unable to list remote directory, skipping", "dir", entry, "error", err)
			sum.DirsSkipped++
			continue
		}

		w.log.Info("processing remote directory", "dir", entry, "output", outDir, "files", len(files))
		sum.DirsScanned++

		for _, name := range files {
			sum.Add(w.syncFile(entry, date, name, outDir))
		}
	}

	return sum, nil
}

// syncFile evaluates and, if needed, transfers a single remote file.
func (w *Walker) syncFile(dir string, date time.Time, remoteName, outDir string) domain.Outcome {
	localName, err := w.parser.LocalFileName(date, remoteName)
	if err != nil {
		w.log.Warn("unexpected remote file name, skipping", "dir", dir, "file", remoteName, "error", err)
		return domain.OutcomeFailed
	}

	remotePath := path.Join(dir, remoteName)
	localPath := filepath.Join(outDir, localName)

	local := readLocalMeta(localPath)
	if local.Err != nil {
		w.log.Warn("unable to read local metadata, retrying the download",
			"target", localPath, "error", local.Err)
	}

	// Remote metadata is only worth fetching when there is a readable local
	// copy to compare against; in every other case the decision is already
	// a download.
	var remote domain.RemoteMeta
	if local.Exists && local.Err == nil {
		remote = w.readRemoteMeta(remotePath)
		if remote.Err != nil {
			w.log.Warn("unable to read remote metadata, retrying the download",
				"source", remotePath, "error", remote.Err)
		}
	}

	dec := w.decider.ShouldDownload(local, remote)
	if !dec.Download {
		w.log.Info("file already retrieved", "source", remotePath, "reason", dec.Reason)
		return domain.OutcomeSkipped
	}

	if local.Exists && local.Err == nil {
		w.log.Warn("target exists but does not match the source, retrieving",
			"source", remotePath, "target", localPath, "reason", dec.Reason)
	}

	if err := w.session.Retrieve(remotePath, localPath); err != nil {
		w.log.Warn("unable to retrieve file", "source", remotePath, "error", err)
		return domain.OutcomeFailed
	}

	w.log.Info("retrieved", "source", remotePath, "target", localPath)
	return domain.OutcomeDownloaded
}

// readLocalMeta gathers decision inputs for the local side. Exists is false
// only on a definite not-exist; any other stat failure keeps Exists true and
// records the error, so the decision reason can distinguish the two.
func readLocalMeta(localPath string) domain.LocalMeta {
	info, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.LocalMeta{Exists: false}
		}
		return domain.LocalMeta{Exists: true, Err: err}
	}
	return domain.LocalMeta{
		Exists:    true,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
}

// readRemoteMeta gathers decision inputs for the remote side. A failure of
// either call marks the whole metadata set unavailable.
func (w *Walker) readRemoteMeta(remotePath string) domain.RemoteMeta {
	size, err := w.session.Size(remotePath)
	if err != nil {
		return domain.RemoteMeta{Err: fmt.Errorf("%w: size of %s: %v", domain.ErrMetadata, remotePath, err)}
	}
	mod, err := w.session.ModTime(remotePath)
	if err != nil {
		return domain.RemoteMeta{Err: fmt.Errorf("%w: modtime of %s: %v", domain.ErrMetadata, remotePath, err)}
	}
	return domain.RemoteMeta{Size: size, ModTime: mod}
}
