package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.cadencerc, $XDG_CONFIG_HOME/cadence/config.toml, ~/.config/cadence/config.toml
// A .env file in the working directory is loaded first; it never overrides
// variables already set.
func Load() (*Config, error) {
	return load(FindConfigFile())
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// FindConfigFile returns the first existing config file path.
func FindConfigFile() string {
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SearchPaths lists config file locations in priority order.
func SearchPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	paths := []string{
		filepath.Join(home, ".cadencerc"),
	}

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return append(paths, filepath.Join(xdgConfig, "cadence", "config.toml"))
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// The conventional MPD client variables.
	if v := os.Getenv("MPD_HOST"); v != "" {
		host, password := SplitHost(v)
		cfg.MPD.Host = host
		if password != "" {
			cfg.MPD.Password = password
		}
		cfg.MPD.Profile = ""
	}
	if v := os.Getenv("MPD_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MPD.Port = i
		}
	}
	if v := os.Getenv("MPD_PASSWORD"); v != "" {
		cfg.MPD.Password = v
	}

	if v := os.Getenv("CADENCE_PROFILE"); v != "" {
		cfg.MPD.Profile = v
	}
	if v := os.Getenv("CADENCE_TIMEOUT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MPD.Timeout = i
		}
	}
	if v := os.Getenv("CADENCE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CADENCE_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}

	// Log
	if v := os.Getenv("CADENCE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CADENCE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("CADENCE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// SplitHost splits the password@host form of MPD_HOST. Socket paths and
// abstract sockets (leading @) are returned unchanged.
func SplitHost(v string) (host, password string) {
	if strings.HasPrefix(v, "/") || strings.HasPrefix(v, "@") {
		return v, ""
	}
	if i := strings.LastIndexByte(v, '@'); i > 0 {
		return v[i+1:], v[:i]
	}
	return v, ""
}
