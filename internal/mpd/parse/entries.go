package parse

import (
	"strings"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// Entries parses an `lsinfo` style listing in server order. Files,
// directories and playlists may be interleaved.
func Entries(pairs []proto.Pair) []core.Entry {
	var (
		out []core.Entry
		cur *core.Entry
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
				continue
			}
			cur = &core.Entry{Kind: core.EntryFile, Path: p.Value, Track: newTrack(p.Value)}
		case "directory":
			flush()
			if p.Value == "" {
				continue
			}
			cur = &core.Entry{Kind: core.EntryDirectory, Path: p.Value}
		case "playlist":
			flush()
			if p.Value == "" {
				continue
			}
			cur = &core.Entry{Kind: core.EntryPlaylist, Path: p.Value}
		default:
			if cur == nil {
				continue
			}
			if strings.EqualFold(p.Key, "Last-Modified") {
				cur.LastModified = timestamp(p.Key, p.Value)
			}
			if cur.Track != nil {
				applyTrackTag(cur.Track, p)
			}
		}
	}
	flush()
	return out
}

// Playlists parses a `listplaylists` reply.
func Playlists(pairs []proto.Pair) []core.Playlist {
	var out []core.Playlist
	for _, p := range pairs {
		switch {
		case p.Key == "playlist":
			out = append(out, core.Playlist{Name: p.Value})
		case strings.EqualFold(p.Key, "Last-Modified") && len(out) > 0:
			out[len(out)-1].LastModified = timestamp(p.Key, p.Value)
		}
	}
	return out
}
