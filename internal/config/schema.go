package config

import (
	"time"

	"github.com/tessro/cadence/internal/core"
)

// Config is the root configuration structure.
type Config struct {
	MPD       MPDConfig            `toml:"mpd" json:"mpd"`
	Monitor   MonitorConfig        `toml:"monitor" json:"monitor"`
	Store     StoreConfig          `toml:"store" json:"store"`
	Discovery DiscoveryConfig      `toml:"discovery" json:"discovery"`
	Serve     ServeConfig          `toml:"serve" json:"serve"`
	Tail      TailConfig           `toml:"tail" json:"tail"`
	Log       LogConfig            `toml:"log" json:"log"`
	Profiles  []core.ServerProfile `toml:"profiles" json:"profiles,omitempty"`
}

// MPDConfig holds the default server and connection settings.
type MPDConfig struct {
	Host     string `toml:"host" json:"host"`
	Port     int    `toml:"port" json:"port"`
	Password string `toml:"password" json:"-"`
	// Profile names a saved profile to use instead of host/port.
	Profile    string   `toml:"profile" json:"profile,omitempty"`
	Timeout    int      `toml:"timeout" json:"timeout"`
	Subsystems []string `toml:"subsystems" json:"subsystems,omitempty"`
}

// TimeoutDuration returns the connect and command timeout.
func (c MPDConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ServerProfile returns the server described by this section.
func (c MPDConfig) ServerProfile() core.ServerProfile {
	return core.ServerProfile{Name: "default", Host: c.Host, Port: c.Port, Password: c.Password}
}

// MonitorConfig holds state monitor timings.
type MonitorConfig struct {
	// ResyncInterval is in seconds.
	ResyncInterval int `toml:"resync_interval" json:"resync_interval"`
	// TickInterval is in milliseconds.
	TickInterval int `toml:"tick_interval" json:"tick_interval"`
}

func (c MonitorConfig) ResyncDuration() time.Duration {
	return time.Duration(c.ResyncInterval) * time.Second
}

func (c MonitorConfig) TickDuration() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// StoreConfig locates the profile database.
type StoreConfig struct {
	Path string `toml:"path" json:"path"`
}

// DiscoveryConfig holds mDNS browsing settings.
type DiscoveryConfig struct {
	// Timeout is in seconds.
	Timeout int `toml:"timeout" json:"timeout"`
}

func (c DiscoveryConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ServeConfig holds the websocket bridge settings.
type ServeConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// TailConfig holds settings for tail/follow mode.
type TailConfig struct {
	Timestamps bool   `toml:"timestamps" json:"timestamps"`
	Plain      bool   `toml:"plain" json:"plain"`
	Format     string `toml:"format" json:"format,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	File   string `toml:"file" json:"file,omitempty"`
	Format string `toml:"format" json:"format"`
}
