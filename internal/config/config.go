package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/underwoo/ncep-reanal/internal/domain"
)

// Remote describes the server and layout being mirrored.
type Remote struct {
	// URL of the remote server, e.g. ftp://ftp.ncep.noaa.gov or
	// sftp://user@mirror.example.com.
	URL string `mapstructure:"url"`

	// Path is the base directory containing the date directories.
	Path string `mapstructure:"path"`

	// Prefix is the name prefix of date directories and hourly files.
	Prefix string `mapstructure:"prefix"`

	// User and Password. Empty user means anonymous access.
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// TimeoutSeconds bounds connection establishment. 0 means no timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Local describes the destination archive.
type Local struct {
	// Root of the archive. Must exist before a run starts; per-month
	// subdirectories are created as needed.
	Root string `mapstructure:"root"`
}

// Log configures diagnostics.
type Log struct {
	Level  string  `mapstructure:"level"`
	Format string  `mapstructure:"format"`
	File   FileLog `mapstructure:"file"`
}

// FileLog configures the optional rotated log file. Off by default.
type FileLog struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Config is the complete configuration for a mirror run.
type Config struct {
	Remote Remote `mapstructure:"remote"`
	Local  Local  `mapstructure:"local"`
	Log    Log    `mapstructure:"log"`
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.URL)
	if err != nil {
		return fmt.Errorf("%w: remote url: %v", domain.ErrConfigInvalid, err)
	}
	switch u.Scheme {
	case "ftp", "sftp", "":
	default:
		return fmt.Errorf("%w: %q", domain.ErrSchemeUnsupported, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: remote url has no host", domain.ErrConfigInvalid)
	}
	if c.Remote.Prefix == "" {
		return fmt.Errorf("%w: remote prefix cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Remote.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Local.Root == "" {
		return fmt.Errorf("%w: local root cannot be empty", domain.ErrConfigInvalid)
	}
	if u.Scheme == "sftp" && c.Remote.User == "" && u.User == nil {
		return fmt.Errorf("%w: sftp requires a user", domain.ErrConfigInvalid)
	}
	return nil
}

// RemoteURL returns the parsed remote URL. A user embedded in the URL takes
// effect only when remote.user is unset.
func (c *Config) RemoteURL() (*url.URL, error) {
	u, err := url.Parse(c.Remote.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: remote url: %v", domain.ErrConfigInvalid, err)
	}
	return u, nil
}

// Credentials resolves user and password from the config and the URL.
func (c *Config) Credentials(u *url.URL) (user, password string) {
	user, password = c.Remote.User, c.Remote.Password
	if user == "" && u.User != nil {
		user = u.User.Username()
		if pw, ok := u.User.Password(); ok && password == "" {
			password = pw
		}
	}
	return user, password
}

// Timeout returns the connect timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}
