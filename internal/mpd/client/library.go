package client

import (
	"context"
	"sort"
	"strings"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/parse"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// grouped reports whether the server understands filter expressions and
// `group` on list. Older servers get the legacy positional syntax.
func (c *Client) grouped() bool {
	return c.Version().AtLeast(0, 21, 0)
}

// Artists lists track artists with their MusicBrainz ids.
func (c *Client) Artists(ctx context.Context) ([]core.Artist, error) {
	return c.listArtists(ctx, "artist", "musicbrainz_artistid")
}

// AlbumArtists lists album artists with their MusicBrainz ids.
func (c *Client) AlbumArtists(ctx context.Context) ([]core.Artist, error) {
	return c.listArtists(ctx, "albumartist", "musicbrainz_albumartistid")
}

func (c *Client) listArtists(ctx context.Context, tag, mbidTag string) ([]core.Artist, error) {
	line := proto.Command("list", tag)
	if c.grouped() {
		line = proto.Command("list", tag, "group", mbidTag)
	} else {
		mbidTag = ""
	}
	return Call(ctx, c, Command[[]core.Artist]{
		Lines: []string{line},
		Parse: func(r *proto.Response) ([]core.Artist, error) {
			return sortArtists(parse.Artists(r.Pairs(), tag, mbidTag)), nil
		},
	})
}

// Albums lists every album with its album artist.
func (c *Client) Albums(ctx context.Context) ([]core.Album, error) {
	line := proto.Command("list", "album")
	if c.grouped() {
		line = proto.Command("list", "album", "group", "albumartist", "group", "musicbrainz_albumid")
	}
	return c.listAlbums(ctx, line, "")
}

// ArtistAlbums lists the albums whose album artist is artist.
func (c *Client) ArtistAlbums(ctx context.Context, artist string) ([]core.Album, error) {
	line := proto.Command("list", "album", "albumartist", artist)
	if c.grouped() {
		line = proto.Command("list", "album", filter("albumartist", artist), "group", "musicbrainz_albumid")
	}
	return c.listAlbums(ctx, line, artist)
}

func (c *Client) listAlbums(ctx context.Context, line, artist string) ([]core.Album, error) {
	return Call(ctx, c, Command[[]core.Album]{
		Lines: []string{line},
		Parse: func(r *proto.Response) ([]core.Album, error) {
			albums := parse.Albums(r.Pairs(), "albumartist")
			if artist != "" {
				for i := range albums {
					albums[i].Artist = artist
				}
			}
			sort.SliceStable(albums, func(i, j int) bool {
				return strings.ToLower(albums[i].Sort) < strings.ToLower(albums[j].Sort)
			})
			return albums, nil
		},
	})
}

// AlbumTracks returns the songs of album ordered by disc and track number.
// Albums with a MusicBrainz id are matched on it alone.
func (c *Client) AlbumTracks(ctx context.Context, album core.Album) ([]core.Track, error) {
	var line string
	switch {
	case c.grouped() && album.MBID != "":
		line = proto.Command("find", filter("musicbrainz_albumid", album.MBID))
	case c.grouped() && album.Artist != "":
		line = proto.Command("find", "("+filter("album", album.Name)+" AND "+filter("albumartist", album.Artist)+")")
	case c.grouped():
		line = proto.Command("find", filter("album", album.Name))
	case album.Artist != "":
		line = proto.Command("find", "album", album.Name, "albumartist", album.Artist)
	default:
		line = proto.Command("find", "album", album.Name)
	}
	return Call(ctx, c, Command[[]core.Track]{
		Lines: []string{line},
		Parse: func(r *proto.Response) ([]core.Track, error) {
			tracks := parse.Tracks(r.Pairs())
			sort.SliceStable(tracks, func(i, j int) bool {
				if tracks[i].Disc != tracks[j].Disc {
					return tracks[i].Disc < tracks[j].Disc
				}
				return tracks[i].Track < tracks[j].Track
			})
			return tracks, nil
		},
	})
}

// Search does a case-insensitive substring search on tag ("any", "title",
// "album", "artist", ...).
func (c *Client) Search(ctx context.Context, tag, query string) ([]core.Track, error) {
	if tag == "" {
		tag = "any"
	}
	return Call(ctx, c, Command[[]core.Track]{
		Lines: []string{proto.Command("search", tag, query)},
		Parse: func(r *proto.Response) ([]core.Track, error) {
			return parse.Tracks(r.Pairs()), nil
		},
	})
}

// filter builds a filter expression `(tag == "value")`. The value is quoted
// here and the whole expression is quoted again as a command argument.
func filter(tag, value string) string {
	return "(" + tag + " == " + proto.Quote(value) + ")"
}

func sortArtists(artists []core.Artist) []core.Artist {
	sort.SliceStable(artists, func(i, j int) bool {
		return strings.ToLower(artists[i].Name) < strings.ToLower(artists[j].Name)
	})
	return artists
}
