// Package cli wires configuration, transport and the walker into the
// ncep-reanal command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/underwoo/ncep-reanal/internal/config"
	"github.com/underwoo/ncep-reanal/internal/core/decision"
	"github.com/underwoo/ncep-reanal/internal/domain"
	"github.com/underwoo/ncep-reanal/internal/lock"
	"github.com/underwoo/ncep-reanal/internal/logger"
	"github.com/underwoo/ncep-reanal/internal/mirror"
	"github.com/underwoo/ncep-reanal/internal/nameparse"
	"github.com/underwoo/ncep-reanal/internal/transfer"
	"github.com/underwoo/ncep-reanal/internal/transfer/ftpx"
	"github.com/underwoo/ncep-reanal/internal/transfer/sftpx"
)

var (
	cfgFile    string
	rootDir    string
	remoteURL  string
	remotePath string
	prefix     string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "ncep-reanal",
	Short: "Mirror CDAS2 reanalysis files from NCEP into a local archive",
	Long: `ncep-reanal walks the dated CDAS2 directories on the NCEP file server
and mirrors their hourly analysis files into a month-partitioned local
archive, skipping files that were already retrieved and are unchanged.

Running with no arguments performs a full sync with the built-in defaults.
Individual file failures are logged and do not affect the exit status; only
connection, login, base-path or top-level listing failures do.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute runs the root command. The process exits non-zero only on
// fatal-tier failures.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&rootDir, "root", "", "destination archive root (must exist)")
	rootCmd.Flags().StringVar(&remoteURL, "url", "", "remote server URL (ftp:// or sftp://)")
	rootCmd.Flags().StringVar(&remotePath, "remote-path", "", "base directory on the remote server")
	rootCmd.Flags().StringVar(&prefix, "prefix", "", "remote date-directory and file name prefix")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "log format (text or json)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File: logger.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			MaxBackups: cfg.Log.File.MaxBackups,
			Compress:   cfg.Log.File.Compress,
		},
	}); err != nil {
		return err
	}
	log := logger.Get()

	if info, err := os.Stat(cfg.Local.Root); err != nil || !info.IsDir() {
		return domain.Fatal(fmt.Errorf("%w: %q, create it and try again", domain.ErrRootMissing, cfg.Local.Root))
	}

	runLock := lock.New(cfg.Local.Root)
	if err := runLock.Acquire(); err != nil {
		return domain.Fatal(err)
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			log.Warn("failed to release run lock", "error", err)
		}
	}()

	u, err := cfg.RemoteURL()
	if err != nil {
		return err
	}
	user, password := cfg.Credentials(u)
	if user != "" && password == "" {
		password, err = transfer.AskPassword()
		if err != nil {
			return err
		}
	}

	log.Info("connecting", "url", u.Redacted(), "path", cfg.Remote.Path)
	session, err := transfer.Dial(transfer.Options{
		URL:      u,
		User:     user,
		Password: password,
		Timeout:  cfg.Timeout(),
	}, ftpx.Factory{}, sftpx.Factory{})
	if err != nil {
		return domain.Fatal(err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close session", "error", err)
		}
	}()

	walker := mirror.New(session,
		nameparse.New(cfg.Remote.Prefix),
		decision.NewFreshnessDecider(),
		cfg.Remote.Path, cfg.Local.Root, log)

	summary, err := walker.Run(cmd.Context())
	if err != nil {
		return err
	}

	log.Info("mirror run complete",
		"dirs_scanned", summary.DirsScanned,
		"dirs_skipped", summary.DirsSkipped,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return nil
}

// loadConfig reads the config and applies flag overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("root") {
		cfg.Local.Root = rootDir
	}
	if cmd.Flags().Changed("url") {
		cfg.Remote.URL = remoteURL
	}
	if cmd.Flags().Changed("remote-path") {
		cfg.Remote.Path = remotePath
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Remote.Prefix = prefix
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}

	// Flags may have invalidated a previously valid config.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
