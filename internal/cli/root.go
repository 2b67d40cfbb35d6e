package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/config"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

var (
	cfgFile     string
	jsonOut     bool
	verbose     bool
	profileName string
	hostName    string
	portNumber  int
	passwd      string

	subsystems = newSubsystemsValue()

	cfg      *config.Config
	logClose = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Control an MPD server from the command line",
	Long: `Cadence is a command-line client for the Music Player Daemon.

It keeps one protocol connection per invocation, idles on it while waiting,
and can follow player changes live (cadence tail) or bridge them to a
websocket (cadence serve).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogging()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.cadencerc)")
	pf.BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&profileName, "profile", "p", "", "server profile to use")
	pf.StringVarP(&hostName, "host", "H", "", "server host (overrides profile)")
	pf.IntVarP(&portNumber, "port", "P", 0, "server port")
	pf.StringVar(&passwd, "password", "", "server password")
	pf.Var(subsystems, "subsystems", "comma-separated idle subsystems to watch (default: all)")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", cerrors.ErrInvalidConfig, err)
	}

	return nil
}

func initLogging() error {
	closeFn, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Verbose: verbose,
	})
	if err != nil {
		return err
	}
	logClose = closeFn
	return nil
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	_ = logClose()
	if err != nil {
		fmt.Fprintln(os.Stderr, cerrors.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
