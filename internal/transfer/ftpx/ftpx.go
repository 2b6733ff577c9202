// Package ftpx implements the transfer session over plain FTP.
package ftpx

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/underwoo/ncep-reanal/internal/domain"
	"github.com/underwoo/ncep-reanal/internal/transfer"
)

// Anonymous credentials used when no user is configured.
const (
	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"
)

// Factory creates FTP sessions for ftp:// URLs (and URLs with no scheme).
type Factory struct{}

// Accept implements transfer.Factory.
func (Factory) Accept(u *url.URL) bool {
	return u.Scheme == "ftp" || u.Scheme == ""
}

// Create implements transfer.Factory.
func (Factory) Create(opts transfer.Options) (transfer.Session, error) {
	return Dial(opts)
}

// Name implements transfer.Factory.
func (Factory) Name() string { return "ftp" }

// Session wraps a logged-in FTP control connection.
type Session struct {
	conn *ftp.ServerConn
}

// Dial connects and logs in. An empty user means anonymous access.
func Dial(opts transfer.Options) (*Session, error) {
	addr := opts.URL.Host
	if opts.URL.Port() == "" {
		addr = net.JoinHostPort(opts.URL.Hostname(), "21")
	}

	var dialOpts []ftp.DialOption
	if opts.Timeout > 0 {
		dialOpts = append(dialOpts, ftp.DialWithTimeout(opts.Timeout))
	}

	conn, err := ftp.Dial(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConnect, addr, err)
	}

	user, pass := opts.User, opts.Password
	if user == "" {
		user, pass = anonymousUser, anonymousPassword
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLogin, addr, err)
	}

	return &Session{conn: conn}, nil
}

// ChangeDir implements transfer.Session.
func (s *Session) ChangeDir(path string) error {
	return s.conn.ChangeDir(path)
}

// List implements transfer.Session. NameList returns bare names, matching
// the walker's expectation.
func (s *Session) List(path string) ([]string, error) {
	return s.conn.NameList(path)
}

// Size implements transfer.Session.
func (s *Session) Size(path string) (int64, error) {
	return s.conn.FileSize(path)
}

// ModTime implements transfer.Session using MDTM.
func (s *Session) ModTime(path string) (time.Time, error) {
	return s.conn.GetTime(path)
}

// Retrieve streams a remote file into localPath. The transfer goes through
// a temp file renamed into place, so a failed download never leaves a
// half-written archive file that a later run would mistake for current.
func (s *Session) Retrieve(remotePath, localPath string) error {
	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrTransfer, remotePath, err)
	}
	defer resp.Close()

	return writeAtomic(localPath, resp)
}

// Close implements transfer.Session.
func (s *Session) Close() error {
	return s.conn.Quit()
}

func writeAtomic(localPath string, r io.Reader) error {
	tmp := localPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrTransfer, localPath, err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrTransfer, localPath, copyErr)
	}

	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", domain.ErrTransfer, localPath, err)
	}
	return nil
}
