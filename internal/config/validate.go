package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.MPD.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mpd: %w", err))
	}
	if err := c.Monitor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("monitor: %w", err))
	}
	if err := c.Discovery.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("discovery: %w", err))
	}
	if err := c.Serve.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("serve: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	seen := make(map[string]bool)
	for i, p := range c.Profiles {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("profiles[%d]: name is required", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("profiles[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.Host == "" {
			errs = append(errs, fmt.Errorf("profiles[%d]: host is required", i))
		}
		if err := validPort(p.Port); err != nil {
			errs = append(errs, fmt.Errorf("profiles[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	return nil
}

// Validate checks MPDConfig for errors.
func (c *MPDConfig) Validate() error {
	if err := validPort(c.Port); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	for _, s := range c.Subsystems {
		if !IsSubsystem(s) {
			return fmt.Errorf("unknown idle subsystem: %s", s)
		}
	}
	return nil
}

// IsSubsystem reports whether s names an idle subsystem.
func IsSubsystem(s string) bool {
	switch s {
	case "database", "update", "stored_playlist", "playlist", "player", "mixer",
		"output", "options", "partition", "sticker", "subscription", "message", "neighbor", "mount":
		return true
	}
	return false
}

// Validate checks MonitorConfig for errors.
func (c *MonitorConfig) Validate() error {
	if c.ResyncInterval < 0 {
		return errors.New("resync_interval must be non-negative")
	}
	if c.TickInterval < 0 {
		return errors.New("tick_interval must be non-negative")
	}
	return nil
}

// Validate checks DiscoveryConfig for errors.
func (c *DiscoveryConfig) Validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// Validate checks ServeConfig for errors.
func (c *ServeConfig) Validate() error {
	if c.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid addr: %w", err)
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "trace", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be trace, debug, info, warn, or error)", c.Level)
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Format)
	}
	return nil
}
