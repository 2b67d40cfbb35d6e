package core

import "time"

// EntryKind tags a directory listing entry.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDirectory
	EntryPlaylist
)

func (k EntryKind) String() string {
	switch k {
	case EntryDirectory:
		return "directory"
	case EntryPlaylist:
		return "playlist"
	default:
		return "file"
	}
}

// Entry is one item of a directory listing. Track is set only for files.
type Entry struct {
	Kind         EntryKind `json:"kind"`
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
	Track        *Track    `json:"track,omitempty"`
}

// Playlist is a stored playlist on the server.
type Playlist struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified"`
}
