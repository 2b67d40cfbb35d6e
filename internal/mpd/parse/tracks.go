package parse

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// Tracks parses a song list. Each `file:` key starts a new track; a
// `directory:` or `playlist:` key ends the current one without starting
// another.
func Tracks(pairs []proto.Pair) []core.Track {
	var (
		out []core.Track
		cur *core.Track
	)
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, p := range pairs {
		switch p.Key {
		case "file":
			flush()
			if p.Value == "" {
				log.Debug().Msg("dropping track with empty path")
				continue
			}
			cur = newTrack(p.Value)
		case "directory", "playlist":
			flush()
		default:
			if cur != nil {
				applyTrackTag(cur, p)
			}
		}
	}
	flush()
	return out
}

// Track parses a single-song reply such as `currentsong`. It returns nil
// when the reply holds no song.
func Track(pairs []proto.Pair) *core.Track {
	tracks := Tracks(pairs)
	if len(tracks) == 0 {
		return nil
	}
	return &tracks[0]
}

func newTrack(file string) *core.Track {
	return &core.Track{File: file, Pos: -1, ID: -1}
}

func applyTrackTag(t *core.Track, p proto.Pair) {
	switch strings.ToLower(p.Key) {
	case "title":
		t.Title = p.Value
	case "name":
		t.Name = p.Value
	case "artist":
		if t.Artist == "" {
			t.Artist = p.Value
		}
	case "albumartist":
		if t.AlbumArtist == "" {
			t.AlbumArtist = p.Value
		}
	case "album":
		t.Album = p.Value
	case "genre":
		if t.Genre == "" {
			t.Genre = p.Value
		}
	case "date":
		t.Date = p.Value
	case "track":
		t.Track, t.TotalTracks = fraction(p.Key, p.Value)
	case "disc":
		t.Disc, _ = fraction(p.Key, p.Value)
	case "time":
		if t.Length == 0 {
			t.Length = atoi(p.Key, p.Value)
		}
	case "duration":
		t.Duration = seconds(p.Key, p.Value)
		if t.Length == 0 {
			t.Length = int(t.Duration.Seconds())
		}
	case "last-modified":
		t.LastModified = timestamp(p.Key, p.Value)
	case "pos":
		t.Pos = atoi(p.Key, p.Value)
	case "id":
		t.ID = atoi(p.Key, p.Value)
	case "musicbrainz_albumid":
		t.AlbumMBID = p.Value
	case "musicbrainz_artistid":
		if p.Value != "" {
			t.ArtistMBIDs = append(t.ArtistMBIDs, p.Value)
		}
	}
}
