package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/bridge"
)

var (
	serveAddr    string
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve player events over a websocket",
	Long: `Run a websocket bridge at ws://<addr>/ws. Connected clients receive a
snapshot, then every player event, and can send playback commands:

  {"id": "1", "cmd": "volume", "args": {"value": 40}}

Commands: status currentsong queue outputs play pause resume toggle stop
next previous seek volume random repeat single consume add clear
enableoutput disableoutput`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default: [serve] addr)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed cross-origin host patterns")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	m := newMonitor(c)
	go keepConnected(ctx, c)

	monErr := make(chan error, 1)
	go func() { monErr <- m.Run(ctx) }()

	srv := &http.Server{
		Addr:              addr,
		Handler:           bridge.New(c, m, bridge.WithOrigins(serveOrigins...)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()

	log.Info().Str("addr", addr).Str("server", c.Server().Address()).Msg("bridge listening")
	if !JSONOutput() {
		fmt.Printf("Listening on ws://%s/ws\n", addr)
	}

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server: %w", err)
		}
	case err := <-monErr:
		if err != nil && ctx.Err() == nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
