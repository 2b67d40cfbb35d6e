package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// pairs decodes a raw reply up to its OK terminator.
func pairs(raw string) []proto.Pair {
	var out []proto.Pair
	for _, line := range strings.Split(raw, "\n") {
		if line == "OK" {
			break
		}
		if p, ok := proto.SplitPair(line); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestTracksSingle(t *testing.T) {
	got := Tracks(pairs("file: foo.mp3\nTitle: Song\nArtist: Band\nTime: 215\nOK\n"))
	if len(got) != 1 {
		t.Fatalf("len(Tracks) = %d, want 1", len(got))
	}
	tr := got[0]
	if tr.File != "foo.mp3" || tr.Title != "Song" || tr.Artist != "Band" || tr.Length != 215 {
		t.Errorf("track = %+v", tr)
	}
	if tr.Album != "" || tr.AlbumArtist != "" || tr.ArtistMBIDs != nil {
		t.Errorf("absent tags should stay empty: %+v", tr)
	}
}

func TestTracksFull(t *testing.T) {
	raw := `file: Artist/Album/01.flac
Last-Modified: 2021-03-04T05:06:07Z
Artist: A
Artist: A feat. B
AlbumArtist: A
Album: The Album
Title: One
Track: 1/12
Disc: 2/2
Date: 2020
Genre: Rock
MUSICBRAINZ_ALBUMID: album-id
MUSICBRAINZ_ARTISTID: artist-1
MUSICBRAINZ_ARTISTID: artist-2
Time: 181
duration: 180.640
Pos: 4
Id: 17
X-Unknown-Tag: ignored
directory: Artist/Other
file: b.mp3
OK
`
	got := Tracks(pairs(raw))
	want := []core.Track{
		{
			File:         "Artist/Album/01.flac",
			Title:        "One",
			Artist:       "A",
			AlbumArtist:  "A",
			Album:        "The Album",
			AlbumMBID:    "album-id",
			ArtistMBIDs:  []string{"artist-1", "artist-2"},
			Genre:        "Rock",
			Date:         "2020",
			Track:        1,
			TotalTracks:  12,
			Disc:         2,
			Length:       181,
			Duration:     180640 * time.Millisecond,
			LastModified: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC),
			Pos:          4,
			ID:           17,
		},
		{File: "b.mp3", Pos: -1, ID: -1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tracks mismatch (-want +got):\n%s", diff)
	}
}

func TestTracksMalformed(t *testing.T) {
	raw := "file: a.mp3\nTime: abc\nTrack: x/y\nLast-Modified: yesterday\nfile: \nTitle: orphan\nfile: c.mp3\nOK\n"
	got := Tracks(pairs(raw))
	if len(got) != 2 {
		t.Fatalf("len(Tracks) = %d, want 2 (empty path dropped)", len(got))
	}
	if got[0].Length != 0 || got[0].Track != 0 || !got[0].LastModified.IsZero() {
		t.Errorf("malformed fields should default: %+v", got[0])
	}
	if got[1].File != "c.mp3" || got[1].Title != "" {
		t.Errorf("orphan tag leaked into next track: %+v", got[1])
	}
}

func TestTrackCurrentSongEmpty(t *testing.T) {
	if got := Track(nil); got != nil {
		t.Errorf("Track(nil) = %+v, want nil", got)
	}
}

func TestEntriesOrder(t *testing.T) {
	raw := `directory: Music/A
Last-Modified: 2020-01-01T00:00:00Z
file: Music/song.mp3
Title: Song
playlist: Music/list.m3u
directory: Music/B
OK
`
	got := Entries(pairs(raw))
	var kinds []core.EntryKind
	var paths []string
	for _, e := range got {
		kinds = append(kinds, e.Kind)
		paths = append(paths, e.Path)
	}
	wantKinds := []core.EntryKind{core.EntryDirectory, core.EntryFile, core.EntryPlaylist, core.EntryDirectory}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	wantPaths := []string{"Music/A", "Music/song.mp3", "Music/list.m3u", "Music/B"}
	if diff := cmp.Diff(wantPaths, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	if got[1].Track == nil || got[1].Track.Title != "Song" {
		t.Errorf("file entry track = %+v", got[1].Track)
	}
	if got[0].LastModified.IsZero() {
		t.Error("directory Last-Modified not parsed")
	}
}

const statusReply = `volume: 72
repeat: 1
random: 0
single: 0
consume: 1
playlist: 31
playlistlength: 12
mixrampdb: 0.000000
state: play
song: 3
songid: 4
time: 20:181
elapsed: 20.480
bitrate: 320
duration: 181.000
audio: 44100:24:2
nextsong: 4
nextsongid: 5
OK
`

func TestStatus(t *testing.T) {
	got := Status(pairs(statusReply))
	want := core.Status{
		State:           core.StatePlaying,
		Song:            3,
		SongID:          4,
		NextSong:        4,
		NextSongID:      5,
		Elapsed:         20480 * time.Millisecond,
		Length:          181 * time.Second,
		Volume:          72,
		Repeat:          true,
		Consume:         true,
		Bitrate:         320,
		SampleRate:      44100,
		BitDepth:        24,
		Channels:        2,
		PlaylistVersion: 31,
		PlaylistLength:  12,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusIdempotent(t *testing.T) {
	a := Status(pairs(statusReply))
	b := Status(pairs(statusReply))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("parsing twice differs (-first +second):\n%s", diff)
	}
}

func TestStatusDefaults(t *testing.T) {
	got := Status(pairs("state: stop\nplaylistlength: 0\nOK\n"))
	if got.Volume != -1 {
		t.Errorf("Volume = %d, want -1 when absent", got.Volume)
	}
	if got.State != core.StateStopped || got.Song != 0 || got.Elapsed != 0 {
		t.Errorf("defaults wrong: %+v", got)
	}

	legacy := Status(pairs("state: pause\ntime: 12:200\nvolume: bogus\naudio: 48000:f:2\nOK\n"))
	if legacy.Elapsed != 12*time.Second || legacy.Length != 200*time.Second {
		t.Errorf("legacy time = %v/%v, want 12s/200s", legacy.Elapsed, legacy.Length)
	}
	if legacy.Volume != 0 {
		t.Errorf("malformed volume = %d, want 0", legacy.Volume)
	}
	if legacy.BitDepth != 32 || legacy.SampleRate != 48000 {
		t.Errorf("float audio format = %d/%d", legacy.SampleRate, legacy.BitDepth)
	}
}

func TestOutputs(t *testing.T) {
	raw := `outputid: 0
outputname: ALSA
plugin: alsa
outputenabled: 1
outputid: 1
outputname: HTTP stream
plugin: httpd
outputenabled: 0
attribute: dop=0
OK
`
	want := []core.Output{
		{ID: 0, Name: "ALSA", Plugin: "alsa", Enabled: true},
		{ID: 1, Name: "HTTP stream", Plugin: "httpd", Enabled: false},
	}
	if diff := cmp.Diff(want, Outputs(pairs(raw))); diff != "" {
		t.Errorf("Outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestArtists(t *testing.T) {
	raw := `MUSICBRAINZ_ARTISTID: 
Artist: Unknown
MUSICBRAINZ_ARTISTID: id-1
Artist: Collab
MUSICBRAINZ_ARTISTID: id-2
Artist: Collab
Artist: Solo
OK
`
	want := []core.Artist{
		{Name: "Unknown"},
		{Name: "Collab", MBIDs: []string{"id-1", "id-2"}},
		{Name: "Solo", MBIDs: []string{"id-2"}},
	}
	got := Artists(pairs(raw), "Artist", "MUSICBRAINZ_ARTISTID")
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Artists mismatch (-want +got):\n%s", diff)
	}
}

func TestAlbums(t *testing.T) {
	raw := `AlbumArtist: A
MUSICBRAINZ_ALBUMID: 
Album: First
Album: Second
MUSICBRAINZ_ALBUMID: m-1
Album: Third
AlbumArtist: B
Album: Third
MUSICBRAINZ_ALBUMID: 
Album: First
Album: First
OK
`
	want := []core.Album{
		{Name: "First", Artist: "A", Sort: "First"},
		{Name: "Second", Artist: "A", Sort: "Second"},
		{Name: "Third", Artist: "A", MBID: "m-1", Sort: "Third"},
		{Name: "First", Artist: "B", Sort: "First"},
	}
	got := Albums(pairs(raw), "AlbumArtist")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Albums mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaylistsAndMisc(t *testing.T) {
	pl := Playlists(pairs("playlist: road trip\nLast-Modified: 2022-02-02T02:02:02Z\nplaylist: chill\nOK\n"))
	if len(pl) != 2 || pl[0].Name != "road trip" || pl[0].LastModified.IsZero() || pl[1].Name != "chill" {
		t.Errorf("Playlists = %+v", pl)
	}

	if diff := cmp.Diff([]string{"player", "mixer"}, Changed(pairs("changed: player\nchanged: mixer\nOK\n"))); diff != "" {
		t.Errorf("Changed mismatch:\n%s", diff)
	}

	cmds := Commands(pairs("command: play\ncommand: status\nOK\n"))
	if _, ok := cmds["play"]; !ok || len(cmds) != 2 {
		t.Errorf("Commands = %v", cmds)
	}

	c := PictureChunk(pairs("size: 4096\ntype: image/jpeg\nOK\n"))
	if c.Size != 4096 || c.Type != "image/jpeg" {
		t.Errorf("PictureChunk = %+v", c)
	}

	s := ParseStats(pairs("artists: 3\nalbums: 4\nsongs: 50\ndb_update: 1600000000\nOK\n"))
	if s.Artists != 3 || s.Albums != 4 || s.Songs != 50 || s.DBUpdate != 1600000000 {
		t.Errorf("ParseStats = %+v", s)
	}

	if got := UpdateJob(pairs("updating_db: 7\nOK\n")); got != 7 {
		t.Errorf("UpdateJob = %d, want 7", got)
	}
}
