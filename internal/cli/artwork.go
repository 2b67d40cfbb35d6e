package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/mpd/client"
)

var artworkOut string

var artworkCmd = &cobra.Command{
	Use:   "artwork [uri]",
	Short: "Download album artwork",
	Long: `Fetch the embedded picture or cover file of a song, by default the
current one. The image is written to --output, or to stdout with "-".

Examples:
  cadence artwork -o cover.jpg
  cadence artwork "Artist/Album/01.flac" -o - | kitty +kitten icat`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArtwork,
}

func init() {
	artworkCmd.Flags().StringVarP(&artworkOut, "output", "o", "", "file to write (default: cover.<ext>)")
	rootCmd.AddCommand(artworkCmd)
}

func runArtwork(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		uri := ""
		if len(args) == 1 {
			uri = args[0]
		} else {
			song, err := c.CurrentSong(ctx)
			if err != nil {
				return fmt.Errorf("failed to get current song: %w", err)
			}
			if song == nil {
				return fmt.Errorf("nothing is playing; pass a song uri")
			}
			uri = song.File
		}

		art, err := c.AlbumArtwork(ctx, uri)
		if errors.Is(err, client.ErrNoArtwork) {
			return fmt.Errorf("no artwork for %s", uri)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch artwork: %w", err)
		}

		if artworkOut == "-" {
			_, err := os.Stdout.Write(art.Data)
			return err
		}
		path := artworkOut
		if path == "" {
			path = "cover" + artworkExt(art.Type)
		}
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write artwork: %w", err)
		}

		if JSONOutput() {
			return printJSON(map[string]any{"path": path, "type": art.Type, "size": len(art.Data), "uri": uri})
		}
		fmt.Printf("Saved %s (%s) to %s\n", FormatSize(len(art.Data)), orUnknown(art.Type), path)
		return nil
	})
}

func artworkExt(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown type"
	}
	return s
}
