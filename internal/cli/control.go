package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/client"
)

var playID bool

var playCmd = &cobra.Command{
	Use:   "play [position]",
	Short: "Start playback",
	Long: `Start playback at a queue position (1-based), or resume the current song.

Examples:
  cadence play        # resume or start
  cadence play 3      # third song in the queue
  cadence play --id 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	RunE: simple("paused", "⏸ Paused", func(ctx context.Context, c *client.Client) error {
		return c.Pause(ctx)
	}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume playback",
	RunE: simple("playing", "▶ Resumed", func(ctx context.Context, c *client.Client) error {
		return c.Resume(ctx)
	}),
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle between play and pause",
	RunE: simple("toggled", "⏯ Toggled", func(ctx context.Context, c *client.Client) error {
		return c.TogglePause(ctx)
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	RunE: simple("stopped", "⏹ Stopped", func(ctx context.Context, c *client.Client) error {
		return c.Stop(ctx)
	}),
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to next song",
	RunE: simple("next", "⏭ Next", func(ctx context.Context, c *client.Client) error {
		return c.Next(ctx)
	}),
}

var prevCmd = &cobra.Command{
	Use:     "prev",
	Aliases: []string{"previous"},
	Short:   "Go to previous song",
	RunE: simple("previous", "⏮ Previous", func(ctx context.Context, c *client.Client) error {
		return c.Previous(ctx)
	}),
}

var restartCmd = &cobra.Command{
	Use:     "restart",
	Aliases: []string{"replay"},
	Short:   "Restart current song",
	RunE: simple("restarted", "⏪ Restarted", func(ctx context.Context, c *client.Client) error {
		return c.SeekCurrent(ctx, 0)
	}),
}

var seekCmd = &cobra.Command{
	Use:   "seek <time>",
	Short: "Seek within the current song",
	Long: `Seek to an absolute position or relative to the current one.

Examples:
  cadence seek 1:30
  cadence seek 95.5
  cadence seek +10
  cadence seek -- -10`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

var (
	volumeUp   bool
	volumeDown bool
	volumeStep int
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set or adjust volume",
	Long: `Show or set the playback volume (0-100), or adjust it up/down.

Examples:
  cadence volume        # Show volume
  cadence volume 50     # Set volume to 50%
  cadence volume --up   # Increase volume by 5%
  cadence volume --down # Decrease volume by 5%`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var crossfadeCmd = &cobra.Command{
	Use:   "crossfade <seconds>",
	Short: "Set crossfade between songs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid crossfade: %s", args[0])
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.SetCrossfade(ctx, time.Duration(n)*time.Second); err != nil {
				return fmt.Errorf("failed to set crossfade: %w", err)
			}
			return done("updated", "Crossfade: %ds", n)
		})
	},
}

func init() {
	playCmd.Flags().BoolVar(&playID, "id", false, "treat the argument as a song id")
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "increase volume")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "decrease volume")
	volumeCmd.Flags().IntVar(&volumeStep, "step", 5, "step for --up/--down")
	volumeCmd.MarkFlagsMutuallyExclusive("up", "down")

	rootCmd.AddCommand(playCmd, pauseCmd, resumeCmd, toggleCmd, stopCmd, nextCmd, prevCmd,
		restartCmd, seekCmd, volumeCmd, crossfadeCmd)

	for _, o := range []struct {
		name  string
		short string
		set   func(*client.Client, context.Context, bool) error
		get   func(*core.Status) bool
	}{
		{"random", "Play the queue in random order", (*client.Client).SetRandom, func(s *core.Status) bool { return s.Random }},
		{"repeat", "Repeat the queue", (*client.Client).SetRepeat, func(s *core.Status) bool { return s.Repeat }},
		{"single", "Stop (or repeat) after the current song", (*client.Client).SetSingle, func(s *core.Status) bool { return s.Single }},
		{"consume", "Remove songs from the queue once played", (*client.Client).SetConsume, func(s *core.Status) bool { return s.Consume }},
	} {
		rootCmd.AddCommand(optionCommand(o.name, o.short, o.set, o.get))
	}
}

// simple builds a RunE for a command without arguments.
func simple(status, message string, fn func(context.Context, *client.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := fn(ctx, c); err != nil {
				return fmt.Errorf("failed to %s: %w", cmd.Name(), err)
			}
			return done(status, "%s", message)
		})
	}
}

// optionCommand builds `<name> [on|off]`; without an argument the option is
// flipped.
func optionCommand(name, short string, set func(*client.Client, context.Context, bool) error, get func(*core.Status) bool) *cobra.Command {
	return &cobra.Command{
		Use:       name + " [on|off]",
		Short:     short,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				var on bool
				if len(args) == 1 {
					v, err := parseOnOff(args[0])
					if err != nil {
						return err
					}
					on = v
				} else {
					st, err := c.Status(ctx)
					if err != nil {
						return fmt.Errorf("failed to get status: %w", err)
					}
					on = !get(st)
				}
				if err := set(c, ctx, on); err != nil {
					return fmt.Errorf("failed to set %s: %w", name, err)
				}
				if JSONOutput() {
					return printJSON(map[string]any{"option": name, "on": on})
				}
				fmt.Printf("%s: %s\n", name, onOff(on))
				return nil
			})
		},
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		var err error
		switch {
		case len(args) == 0:
			err = c.Play(ctx, -1)
		case playID:
			var id int
			if id, err = strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("invalid song id: %s", args[0])
			}
			err = c.PlayID(ctx, id)
		default:
			var pos int
			if pos, err = strconv.Atoi(args[0]); err != nil || pos < 1 {
				return fmt.Errorf("invalid position: %s", args[0])
			}
			err = c.PlayIndex(ctx, pos-1)
		}
		if err != nil {
			return fmt.Errorf("failed to play: %w", err)
		}

		song, err := c.CurrentSong(ctx)
		if err != nil || song == nil {
			return done("playing", "▶ Playing")
		}
		if JSONOutput() {
			return printJSON(map[string]any{"status": "playing", "song": song})
		}
		fmt.Printf("▶ Playing: %s — %s\n", song.DisplayTitle(), song.DisplayArtist())
		return nil
	})
}

func runSeek(cmd *cobra.Command, args []string) error {
	offset, sign, err := parseSeek(args[0])
	if err != nil {
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if sign != 0 {
			st, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			offset = st.Elapsed + time.Duration(sign)*offset
			if offset < 0 {
				offset = 0
			}
		}
		if err := c.SeekCurrent(ctx, offset); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		return done("seeked", "Seeked to %s", FormatDuration(offset))
	})
}

// parseSeek parses "1:30", "1:02:03", "95.5", "+10" or "-10". sign is 0 for
// an absolute position.
func parseSeek(s string) (d time.Duration, sign int, err error) {
	switch {
	case strings.HasPrefix(s, "+"):
		sign, s = 1, s[1:]
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	}
	d, err = parseClock(s)
	return d, sign, err
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 || s == "" {
		return 0, fmt.Errorf("invalid time: %q", s)
	}
	var secs float64
	for i, p := range parts {
		if i == len(parts)-1 {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil || f < 0 {
				return 0, fmt.Errorf("invalid time: %q", s)
			}
			secs += f
			break
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time: %q", s)
		}
		secs = (secs + float64(n)) * 60
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func runVolume(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		var level int
		switch {
		case len(args) == 1:
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 || v > 100 {
				return fmt.Errorf("invalid volume: %s (must be 0-100)", args[0])
			}
			level = v
		default:
			st, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			if st.Volume < 0 {
				return fmt.Errorf("the server has no volume control")
			}
			level = st.Volume
			switch {
			case volumeUp:
				level += volumeStep
			case volumeDown:
				level -= volumeStep
			default:
				if JSONOutput() {
					return printJSON(map[string]int{"volume": level})
				}
				fmt.Printf("🔊 Volume: %d%%\n", level)
				return nil
			}
			level = max(0, min(100, level))
		}

		if err := c.SetVolume(ctx, level); err != nil {
			return fmt.Errorf("failed to set volume: %w", err)
		}
		if JSONOutput() {
			return printJSON(map[string]any{"status": "updated", "volume": level})
		}
		fmt.Printf("🔊 Volume: %d%%\n", level)
		return nil
	})
}
