package domain

import "errors"

// Transfer errors
var (
	// ErrConnect indicates the remote server could not be reached
	ErrConnect = errors.New("unable to connect")

	// ErrLogin indicates authentication with the remote server failed
	ErrLogin = errors.New("unable to log in")

	// ErrNavigate indicates a remote directory change failed
	ErrNavigate = errors.New("unable to change remote directory")

	// ErrList indicates a remote directory listing failed
	ErrList = errors.New("unable to list remote directory")

	// ErrMetadata indicates remote size or modtime could not be retrieved
	ErrMetadata = errors.New("remote metadata unavailable")

	// ErrTransfer indicates a file retrieval failed
	ErrTransfer = errors.New("transfer failed")
)

// Naming and layout errors
var (
	// ErrBadName indicates a remote name does not match the expected layout
	ErrBadName = errors.New("unexpected remote name format")

	// ErrRootMissing indicates the destination root does not exist
	ErrRootMissing = errors.New("destination root does not exist")
)

// Config errors
var (
	// ErrConfigInvalid indicates the configuration is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrSchemeUnsupported indicates no transport handles the remote URL scheme
	ErrSchemeUnsupported = errors.New("unsupported transfer scheme")
)

// fatalError marks an error as aborting the entire run. Everything not
// wrapped this way is recoverable: logged, its unit of work skipped, and the
// run continues with the next sibling.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal wraps err so that IsFatal reports true for it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err carries the fatal marker anywhere in its chain.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
