package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/mpd/client"
)

var queueLimit int

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the play queue",
	Long:  `View and manage the server's play queue.`,
	RunE:  runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <uri>...",
	Short: "Add songs to the queue",
	Long: `Add one or more songs, directories or stream URLs to the end of the queue.

Examples:
  cadence queue add "Artist/Album/01 Song.flac"
  cadence queue add http://radio.example/stream`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQueueAdd,
}

var queueAddDirCmd = &cobra.Command{
	Use:   "add-dir <path>",
	Short: "Add a directory recursively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.AddDirectory(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to add directory: %w", err)
			}
			return done("added", "Added %s", args[0])
		})
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <position>",
	Short: "Remove a song from the queue",
	Long:  `Remove the song at the given 1-based position, or by song id with --id.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRemove,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the queue",
	RunE: simple("cleared", "Queue cleared", func(ctx context.Context, c *client.Client) error {
		return c.Clear(ctx)
	}),
}

var queueShuffleCmd = &cobra.Command{
	Use:   "shuffle",
	Short: "Shuffle the queue",
	RunE: simple("shuffled", "Queue shuffled", func(ctx context.Context, c *client.Client) error {
		return c.Shuffle(ctx)
	}),
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move a song in the queue",
	Long:  `Move a song from one 1-based position to another.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runQueueMove,
}

var queueLoadCmd = &cobra.Command{
	Use:   "load <playlist>",
	Short: "Append a stored playlist to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.LoadPlaylist(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to load playlist: %w", err)
			}
			return done("loaded", "Loaded %s", args[0])
		})
	},
}

var queueSaveCmd = &cobra.Command{
	Use:   "save <playlist>",
	Short: "Save the queue as a stored playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.SavePlaylist(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to save playlist: %w", err)
			}
			return done("saved", "Saved queue as %s", args[0])
		})
	},
}

var queueRemoveByID bool

func init() {
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "l", 20, "Maximum number of songs to show (0 for all)")
	queueRemoveCmd.Flags().BoolVar(&queueRemoveByID, "id", false, "treat the argument as a song id")

	queueCmd.AddCommand(queueAddCmd, queueAddDirCmd, queueRemoveCmd, queueClearCmd,
		queueShuffleCmd, queueMoveCmd, queueLoadCmd, queueSaveCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		queue, err := c.Queue(ctx)
		if err != nil {
			return fmt.Errorf("failed to get queue: %w", err)
		}

		if JSONOutput() {
			return printJSON(queue)
		}
		if queue.IsEmpty() {
			fmt.Println("Queue is empty")
			return nil
		}

		tracks := queue.Tracks
		if queueLimit > 0 && len(tracks) > queueLimit {
			tracks = tracks[:queueLimit]
		}
		for i, t := range tracks {
			prefix := "  "
			if i == queue.CurrentIndex {
				prefix = "▶ "
			}
			fmt.Printf("%s%d. %s — %s (%s)\n", prefix, i+1,
				TruncateString(t.DisplayTitle(), 60), t.DisplayArtist(), FormatDuration(t.Duration))
		}
		if queue.Len() > len(tracks) {
			fmt.Printf("\n... and %d more songs\n", queue.Len()-len(tracks))
		}
		return nil
	})
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if err := c.AddAll(ctx, args...); err != nil {
			return fmt.Errorf("failed to add to queue: %w", err)
		}
		if JSONOutput() {
			return printJSON(map[string]any{"status": "added", "uris": args})
		}
		for _, uri := range args {
			fmt.Printf("Added to queue: %s\n", uri)
		}
		return nil
	})
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || (!queueRemoveByID && n < 1) {
		return fmt.Errorf("invalid index: %s", args[0])
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if queueRemoveByID {
			err = c.RemoveID(ctx, n)
		} else {
			err = c.RemoveIndex(ctx, n-1)
		}
		if err != nil {
			return fmt.Errorf("failed to remove: %w", err)
		}
		return done("removed", "Removed %s", args[0])
	})
}

func runQueueMove(cmd *cobra.Command, args []string) error {
	from, err := strconv.Atoi(args[0])
	if err != nil || from < 1 {
		return fmt.Errorf("invalid from index: %s", args[0])
	}
	to, err := strconv.Atoi(args[1])
	if err != nil || to < 1 {
		return fmt.Errorf("invalid to index: %s", args[1])
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if err := c.Move(ctx, from-1, to-1); err != nil {
			return fmt.Errorf("failed to move: %w", err)
		}
		return done("moved", "Moved %d → %d", from, to)
	})
}
