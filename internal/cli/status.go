package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/client"
	"github.com/tessro/cadence/internal/tui/styles"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current playback status",
	Long:  `Shows the player state, the current song and the playback options.`,
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database and uptime statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
}

type statusResult struct {
	Server string       `json:"server"`
	Status *core.Status `json:"status"`
	Song   *core.Track  `json:"song,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		st, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		res := statusResult{Server: c.Server().Name, Status: st}
		if st.HasSong() {
			if res.Song, err = c.CurrentSong(ctx); err != nil {
				return fmt.Errorf("failed to get current song: %w", err)
			}
		}

		if JSONOutput() {
			return printJSON(res)
		}
		fmt.Println(renderStatus(res))
		return nil
	})
}

func renderStatus(r statusResult) string {
	st := r.Status
	var lines []string

	if r.Song == nil {
		lines = append(lines, styles.StateIcon(st.State)+" "+styles.Muted.Render("Nothing playing"))
	} else {
		lines = append(lines, styles.StateIcon(st.State)+" "+styles.Title.Render(r.Song.DisplayTitle()))
		sub := r.Song.DisplayArtist()
		if r.Song.Album != "" {
			if sub != "" {
				sub += " — "
			}
			sub += r.Song.Album
		}
		if sub != "" {
			lines = append(lines, "  "+styles.Subtitle.Render(sub))
		}
		lines = append(lines, fmt.Sprintf("  %s %s / %s",
			styles.ProgressBar(st.ProgressPercent(), 30),
			FormatDuration(st.Elapsed), FormatDuration(st.Length)))
	}

	var info []string
	if st.Volume >= 0 {
		info = append(info, styles.Label.Render("vol ")+fmt.Sprintf("%d%%", st.Volume))
	}
	info = append(info,
		styles.Toggle("random", st.Random),
		styles.Toggle("repeat", st.Repeat),
		styles.Toggle("single", st.Single),
		styles.Toggle("consume", st.Consume),
	)
	lines = append(lines, "", strings.Join(info, "  "))

	if st.PlaylistLength > 0 {
		pos := "-"
		if st.HasSong() {
			pos = fmt.Sprintf("%d", st.Song+1)
		}
		lines = append(lines, styles.Label.Render(fmt.Sprintf("queue %s/%d", pos, st.PlaylistLength)))
	}
	if st.SampleRate > 0 {
		lines = append(lines, styles.Label.Render(fmt.Sprintf("%d kbps · %d Hz · %d bit · %d ch",
			st.Bitrate, st.SampleRate, st.BitDepth, st.Channels)))
	}
	if st.UpdatingDB > 0 {
		lines = append(lines, styles.Label.Render(fmt.Sprintf("updating database (job %d)", st.UpdatingDB)))
	}
	if st.Error != "" {
		lines = append(lines, styles.Failure.Render(st.Error))
	}

	out := strings.Join(lines, "\n")
	if r.Server != "" {
		out = styles.Highlight.Render(r.Server) + "\n" + out
	}
	return styles.Panel.Render(out)
}

func runStats(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		s, err := c.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		if JSONOutput() {
			return printJSON(s)
		}
		t := NewTable()
		t.Row("artists", fmt.Sprintf("%d", s.Artists))
		t.Row("albums", fmt.Sprintf("%d", s.Albums))
		t.Row("songs", fmt.Sprintf("%d", s.Songs))
		t.Row("db playtime", FormatDuration(secondsDuration(s.DBPlaytime)))
		t.Row("uptime", FormatDuration(secondsDuration(s.Uptime)))
		t.Row("playtime", FormatDuration(secondsDuration(s.Playtime)))
		if s.DBUpdate > 0 {
			t.Row("db updated", FormatAge(unixTime(s.DBUpdate)))
		}
		t.Flush()
		return nil
	})
}
