// Package transfer defines the session interface to the remote file server
// and the factory mechanism that selects a transport by URL scheme.
package transfer

import (
	"fmt"
	"net/url"
	"time"

	"github.com/underwoo/ncep-reanal/internal/domain"
)

// Session is a live, authenticated connection to the remote file server.
// Remote locations are threaded through calls as explicit paths, relative to
// the directory established with ChangeDir; implementations must not require
// paired enter/leave calls around each directory.
//
// A Session is used by a single goroutine; implementations need no locking.
type Session interface {
	// ChangeDir moves the session to the given remote directory. Subsequent
	// paths are resolved relative to it.
	ChangeDir(path string) error

	// List returns the bare entry names at the given relative path
	// ("" for the current directory).
	List(path string) ([]string, error)

	// Size returns the size in bytes of a remote file.
	Size(path string) (int64, error)

	// ModTime returns the modification time of a remote file.
	ModTime(path string) (time.Time, error)

	// Retrieve downloads a remote file to the given local path. The local
	// file must not be left half-written on failure.
	Retrieve(remotePath, localPath string) error

	// Close releases the session. Safe to call on every exit path.
	Close() error
}

// Options carries everything a transport needs to establish a session.
type Options struct {
	URL      *url.URL
	User     string // empty means anonymous
	Password string
	Timeout  time.Duration
}

// Factory creates sessions for the URL schemes it accepts.
type Factory interface {
	// Accept reports whether this factory handles the URL's scheme.
	Accept(u *url.URL) bool

	// Create dials and authenticates a new session.
	Create(opts Options) (Session, error)

	// Name identifies the transport in diagnostics.
	Name() string
}

// Dial selects a factory for the URL scheme and establishes a session.
func Dial(opts Options, factories ...Factory) (Session, error) {
	if opts.URL == nil {
		return nil, fmt.Errorf("%w: no remote URL", domain.ErrConfigInvalid)
	}
	for _, f := range factories {
		if f.Accept(opts.URL) {
			return f.Create(opts)
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrSchemeUnsupported, opts.URL.Scheme)
}
