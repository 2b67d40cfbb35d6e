package config

import (
	"os"
	"path/filepath"

	"github.com/tessro/cadence/internal/core"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		MPD: MPDConfig{
			Host:    "localhost",
			Port:    core.DefaultPort,
			Timeout: 10,
		},
		Monitor: MonitorConfig{
			ResyncInterval: 30,
			TickInterval:   1000,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Discovery: DiscoveryConfig{
			Timeout: 3,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:6680",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

func defaultStorePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "cadence.db"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "cadence", "profiles.db")
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// MPD
	if c.MPD.Host == "" && c.MPD.Profile == "" {
		c.MPD.Host = d.MPD.Host
	}
	if c.MPD.Port == 0 {
		c.MPD.Port = d.MPD.Port
	}
	if c.MPD.Timeout == 0 {
		c.MPD.Timeout = d.MPD.Timeout
	}

	// Monitor
	if c.Monitor.ResyncInterval == 0 {
		c.Monitor.ResyncInterval = d.Monitor.ResyncInterval
	}
	if c.Monitor.TickInterval == 0 {
		c.Monitor.TickInterval = d.Monitor.TickInterval
	}

	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = d.Discovery.Timeout
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	for i := range c.Profiles {
		if c.Profiles[i].Port == 0 {
			c.Profiles[i].Port = core.DefaultPort
		}
	}
}
