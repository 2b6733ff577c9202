package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/underwoo/ncep-reanal/internal/domain"
)

// envPrefix namespaces environment overrides, e.g. NCEP_REANAL_LOCAL_ROOT.
const envPrefix = "NCEP_REANAL"

// DefaultConfigPaths returns the locations searched for config.yaml when no
// explicit path is given.
func DefaultConfigPaths() []string {
	paths := []string{"."}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "ncep-reanal"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".ncep-reanal"))
	}

	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.url", "ftp://ftp.ncep.noaa.gov")
	v.SetDefault("remote.path", "pub/data/nccf/com/cdas2/prod")
	v.SetDefault("remote.prefix", "cdas2")
	v.SetDefault("remote.timeout_seconds", 30)
	v.SetDefault("local.root", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. If path is empty, the default locations are
// searched; a missing config file is not an error since every key has a
// default. A malformed file is.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
			}
			// No file anywhere: run on defaults.
		}
	}

	return unmarshal(v)
}

// LoadFromString parses configuration from a YAML string. Used by tests.
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
