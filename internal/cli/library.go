package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/client"
	"github.com/tessro/cadence/internal/wizard"
)

var (
	libraryAlbumArtists bool
	libraryArtist       string
	searchTag           string
	searchAdd           bool
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Browse the music database",
}

var libraryArtistsCmd = &cobra.Command{
	Use:   "artists",
	Short: "List artists",
	Args:  cobra.NoArgs,
	RunE:  runLibraryArtists,
}

var libraryAlbumsCmd = &cobra.Command{
	Use:   "albums [artist]",
	Short: "List albums, optionally for one album artist",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLibraryAlbums,
}

var libraryTracksCmd = &cobra.Command{
	Use:   "tracks <album>",
	Short: "List the songs of an album",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryTracks,
}

var libraryFilesCmd = &cobra.Command{
	Use:   "files [path]",
	Short: "List a directory of the database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLibraryFiles,
}

var libraryPlaylistsCmd = &cobra.Command{
	Use:   "playlists",
	Short: "List stored playlists",
	Args:  cobra.NoArgs,
	RunE:  runLibraryPlaylists,
}

var libraryPlaylistCmd = &cobra.Command{
	Use:   "playlist <name>",
	Short: "Show the songs of a stored playlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryPlaylist,
}

var libraryRmPlaylistCmd = &cobra.Command{
	Use:   "rm-playlist <name>",
	Short: "Delete a stored playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.DeletePlaylist(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete playlist: %w", err)
			}
			return done("deleted", "Deleted %s", args[0])
		})
	},
}

var librarySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the library",
	Long: `Search titles, albums and artists. Without a query an interactive
search opens when running in a terminal; the chosen song is added to the queue.

Examples:
  cadence library search river
  cadence library search --tag album "blue"
  cadence library search`,
	RunE: runLibrarySearch,
}

var libraryUpdateCmd = &cobra.Command{
	Use:   "update [path]",
	Short: "Rescan the music directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			job, err := c.Update(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to start update: %w", err)
			}
			if JSONOutput() {
				return printJSON(map[string]any{"status": "updating", "job": job})
			}
			fmt.Printf("Updating database (job %d)\n", job)
			return nil
		})
	},
}

func init() {
	libraryArtistsCmd.Flags().BoolVar(&libraryAlbumArtists, "album-artists", false, "list album artists instead")
	libraryTracksCmd.Flags().StringVarP(&libraryArtist, "artist", "a", "", "album artist, to tell apart albums with the same name")
	librarySearchCmd.Flags().StringVarP(&searchTag, "tag", "t", "any", "tag to search: any, title, album or artist")
	librarySearchCmd.Flags().BoolVar(&searchAdd, "add", false, "add every match to the queue")

	libraryCmd.AddCommand(libraryArtistsCmd, libraryAlbumsCmd, libraryTracksCmd, libraryFilesCmd,
		libraryPlaylistsCmd, libraryPlaylistCmd, libraryRmPlaylistCmd, librarySearchCmd, libraryUpdateCmd)
	rootCmd.AddCommand(libraryCmd)
}

func runLibraryArtists(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		list := c.Artists
		if libraryAlbumArtists {
			list = c.AlbumArtists
		}
		artists, err := list(ctx)
		if err != nil {
			return fmt.Errorf("failed to list artists: %w", err)
		}
		if JSONOutput() {
			return printJSON(artists)
		}
		for _, a := range artists {
			fmt.Println(a.Name)
		}
		return nil
	})
}

func runLibraryAlbums(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		var (
			albums []core.Album
			err    error
		)
		if len(args) == 1 {
			albums, err = c.ArtistAlbums(ctx, args[0])
		} else {
			albums, err = c.Albums(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list albums: %w", err)
		}
		if JSONOutput() {
			return printJSON(albums)
		}
		t := NewTable("ALBUM", "ARTIST")
		for _, a := range albums {
			t.Row(TruncateString(a.Name, 50), a.Artist)
		}
		t.Flush()
		return nil
	})
}

func runLibraryTracks(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		tracks, err := c.AlbumTracks(ctx, core.Album{Name: args[0], Artist: libraryArtist})
		if err != nil {
			return fmt.Errorf("failed to list tracks: %w", err)
		}
		return printTracks(tracks)
	})
}

func runLibraryFiles(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		entries, err := c.Files(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to list %q: %w", path, err)
		}
		if JSONOutput() {
			return printJSON(entries)
		}
		t := NewTable("TYPE", "PATH", "MODIFIED")
		for _, e := range entries {
			t.Row(e.Kind.String(), e.Path, FormatAge(e.LastModified))
		}
		t.Flush()
		return nil
	})
}

func runLibraryPlaylists(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		playlists, err := c.Playlists(ctx)
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		if JSONOutput() {
			return printJSON(playlists)
		}
		if len(playlists) == 0 {
			fmt.Println("No stored playlists")
			return nil
		}
		t := NewTable("NAME", "MODIFIED")
		for _, p := range playlists {
			t.Row(p.Name, FormatAge(p.LastModified))
		}
		t.Flush()
		return nil
	})
}

func runLibraryPlaylist(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		tracks, err := c.SavedPlaylist(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to read playlist: %w", err)
		}
		return printTracks(tracks)
	})
}

func runLibrarySearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if query == "" {
			return interactiveSearch(ctx, c)
		}
		tracks, err := c.Search(ctx, searchTag, query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if searchAdd && len(tracks) > 0 {
			uris := make([]string, len(tracks))
			for i, t := range tracks {
				uris[i] = t.File
			}
			if err := c.AddAll(ctx, uris...); err != nil {
				return fmt.Errorf("failed to add to queue: %w", err)
			}
		}
		return printTracks(tracks)
	})
}

func interactiveSearch(ctx context.Context, c *client.Client) error {
	in := wizard.NewInteractive()
	if !in.CanInteract() || JSONOutput() {
		return fmt.Errorf("a search query is required when not running interactively")
	}
	in.SetSearchFunc(func(query string, st wizard.SearchType) ([]wizard.SearchResult, error) {
		tracks, err := c.Search(ctx, st.Tag(), query)
		if err != nil {
			return nil, err
		}
		out := make([]wizard.SearchResult, len(tracks))
		for i, t := range tracks {
			out[i] = wizard.SearchResult{
				URI:      t.File,
				Title:    t.DisplayTitle(),
				Subtitle: joinNonEmpty(" · ", t.DisplayArtist(), t.Album),
			}
		}
		return out, nil
	})

	sel, err := in.PromptSearch()
	if err != nil {
		return err
	}
	if sel == nil {
		return nil
	}
	if err := c.Add(ctx, sel.URI); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}
	fmt.Printf("Added to queue: %s\n", sel.Title)
	return nil
}

func printTracks(tracks []core.Track) error {
	if JSONOutput() {
		return printJSON(tracks)
	}
	if len(tracks) == 0 {
		fmt.Println("No songs")
		return nil
	}
	t := NewTable("#", "TITLE", "ARTIST", "ALBUM", "TIME")
	for _, tr := range tracks {
		num := ""
		if tr.Track > 0 {
			num = fmt.Sprintf("%d", tr.Track)
			if tr.Disc > 1 {
				num = fmt.Sprintf("%d-%d", tr.Disc, tr.Track)
			}
		}
		t.Row(num, TruncateString(tr.DisplayTitle(), 50), TruncateString(tr.DisplayArtist(), 30),
			TruncateString(tr.Album, 30), FormatDuration(tr.Duration))
	}
	t.Flush()
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
