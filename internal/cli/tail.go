package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/monitor"
	"github.com/tessro/cadence/internal/mpd/client"
	"github.com/tessro/cadence/internal/mpd/conn"
)

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow playback changes in real-time",
	Long: `Watch the player and print changes as they happen. The connection
idles between changes, so events arrive as soon as the server reports them.

Events tracked:
  - Song changes, completions and skips
  - Play/pause/stop
  - Volume changes
  - Random/repeat/single/consume changes

Template fields for --format: .Type .Emoji .Time .State .Title .Artist
.Album .File .Elapsed .Length .Volume`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "", "custom format template")

	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("no-emoji") {
		tailNoEmoji = cfg.Tail.Plain
	}
	if !cmd.Flags().Changed("timestamp") {
		tailTimestamp = cfg.Tail.Timestamps
	}
	if !cmd.Flags().Changed("format") {
		tailFormat = cfg.Tail.Format
	}
	formatter, err := monitor.NewFormatter(
		monitor.WithEmoji(!tailNoEmoji),
		monitor.WithTimestamp(tailTimestamp),
		monitor.WithTemplate(tailFormat),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	m := newMonitor(c)
	enc := json.NewEncoder(os.Stdout)
	var mu sync.Mutex
	unsubscribe := m.Subscribe(func(e monitor.Event) {
		mu.Lock()
		defer mu.Unlock()
		if JSONOutput() {
			if e.Type != monitor.EventStatus || tailFormat != "" {
				_ = enc.Encode(e)
			}
			return
		}
		if line := formatter.Format(e); line != "" {
			fmt.Println(line)
		}
	})
	defer unsubscribe()

	go keepConnected(ctx, c)
	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newMonitor(c *client.Client) *monitor.Monitor {
	return monitor.New(c, monitor.Options{
		ResyncInterval: cfg.Monitor.ResyncDuration(),
		TickInterval:   cfg.Monitor.TickDuration(),
	})
}

// keepConnected reconnects c with backoff whenever the connection drops,
// until ctx is done.
func keepConnected(ctx context.Context, c *client.Client) {
	lost := make(chan struct{}, 1)
	unregister := c.OnStateChange(func(sc conn.StateChange) {
		if sc.To == conn.Disconnected {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})
	defer unregister()

	const maxBackoff = 30 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-lost:
		}

		backoff := time.Second
		for c.State() == conn.Disconnected {
			log.Warn().Dur("retry_in", backoff).Msg("connection lost, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := c.Connect(ctx); err != nil {
				log.Debug().Err(err).Msg("reconnect failed")
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			log.Info().Str("server", c.Server().Address()).Msg("reconnected")
		}
	}
}
