package core

import (
	"strings"
	"time"
)

// Track represents a song as reported by the server.
type Track struct {
	File         string        `json:"file"`
	Title        string        `json:"title"`
	Name         string        `json:"name,omitempty"`
	Artist       string        `json:"artist"`
	AlbumArtist  string        `json:"album_artist"`
	Album        string        `json:"album"`
	AlbumMBID    string        `json:"album_mbid,omitempty"`
	ArtistMBIDs  []string      `json:"artist_mbids,omitempty"`
	Genre        string        `json:"genre,omitempty"`
	Date         string        `json:"date,omitempty"`
	Track        int           `json:"track"`
	Disc         int           `json:"disc"`
	TotalTracks  int           `json:"total_tracks"`
	Length       int           `json:"length"`
	Duration     time.Duration `json:"duration"`
	LastModified time.Time     `json:"last_modified"`

	// Queue position and song id; only meaningful for queue responses.
	Pos int `json:"pos"`
	ID  int `json:"id"`
}

// DisplayTitle returns the title, falling back to the stream name and then the file's base name.
func (t *Track) DisplayTitle() string {
	if t == nil {
		return ""
	}
	if t.Title != "" {
		return t.Title
	}
	if t.Name != "" {
		return t.Name
	}
	if i := strings.LastIndexByte(t.File, '/'); i >= 0 {
		return t.File[i+1:]
	}
	return t.File
}

// DisplayArtist prefers the track artist over the album artist.
func (t *Track) DisplayArtist() string {
	if t == nil {
		return ""
	}
	if t.Artist != "" {
		return t.Artist
	}
	return t.AlbumArtist
}

// Album is a distinct album in the library.
type Album struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	MBID   string `json:"mbid,omitempty"`
	Sort   string `json:"sort"`
}

// Key identifies an album for deduplication: the MBID when known,
// otherwise the name and artist pair.
func (a Album) Key() string {
	if a.MBID != "" {
		return "mbid:" + a.MBID
	}
	return "name:" + a.Name + "\x00" + a.Artist
}

// Artist is a library artist. The server may report several MBIDs for
// collaborations.
type Artist struct {
	Name  string   `json:"name"`
	MBIDs []string `json:"mbids,omitempty"`
}
