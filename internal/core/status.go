package core

import "time"

// PlaybackState is the player state reported by the server.
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "play"
	case StatePaused:
		return "pause"
	default:
		return "stop"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the server's `status` response.
type Status struct {
	State           PlaybackState `json:"state"`
	Song            int           `json:"song"`
	SongID          int           `json:"song_id"`
	NextSong        int           `json:"next_song"`
	NextSongID      int           `json:"next_song_id"`
	Elapsed         time.Duration `json:"elapsed"`
	Length          time.Duration `json:"length"`
	Volume          int           `json:"volume"`
	Random          bool          `json:"random"`
	Repeat          bool          `json:"repeat"`
	Single          bool          `json:"single"`
	Consume         bool          `json:"consume"`
	Crossfade       int           `json:"crossfade"`
	Bitrate         int           `json:"bitrate"`
	SampleRate      int           `json:"sample_rate"`
	BitDepth        int           `json:"bit_depth"`
	Channels        int           `json:"channels"`
	PlaylistVersion int           `json:"playlist_version"`
	PlaylistLength  int           `json:"playlist_length"`
	UpdatingDB      int           `json:"updating_db,omitempty"`
	Error           string        `json:"error,omitempty"`

	// Synthetic is set on copies produced by elapsed-time interpolation
	// rather than read from the server.
	Synthetic bool `json:"synthetic,omitempty"`
}

// IsPlaying reports whether the player is playing.
func (s *Status) IsPlaying() bool {
	return s != nil && s.State == StatePlaying
}

// HasSong reports whether a song is current (playing or paused).
func (s *Status) HasSong() bool {
	return s != nil && s.State != StateStopped
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *Status) ProgressPercent() float64 {
	if s == nil || s.Length <= 0 {
		return 0
	}
	p := float64(s.Elapsed) / float64(s.Length) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Advance returns a synthetic copy with elapsed moved forward by d,
// clamped to the track length when it is known.
func (s Status) Advance(d time.Duration) Status {
	s.Synthetic = true
	if d <= 0 {
		return s
	}
	s.Elapsed += d
	if s.Length > 0 && s.Elapsed > s.Length {
		s.Elapsed = s.Length
	}
	return s
}
