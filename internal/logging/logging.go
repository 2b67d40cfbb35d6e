// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Options selects the level, format and destination.
type Options struct {
	Level  string
	Format string // console or json
	File   string
	// Verbose forces debug level regardless of Level.
	Verbose bool
}

// Setup installs the global logger. Logs go to File when set, otherwise to
// stderr. The returned function closes the file.
func Setup(opts Options) (closeFn func() error, err error) {
	level := zerolog.WarnLevel
	if opts.Level != "" {
		level, err = zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	var (
		w     io.Writer = os.Stderr
		tty             = term.IsTerminal(int(os.Stderr.Fd()))
		closer          = func() error { return nil }
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w, tty, closer = f, false, f.Close
	}

	log.Logger = New(w, opts.Format, level, tty)
	zerolog.SetGlobalLevel(level)
	return closer, nil
}

// New builds a logger writing to w.
func New(w io.Writer, format string, level zerolog.Level, color bool) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !color}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
