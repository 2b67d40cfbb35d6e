package monitor

import (
	"time"

	"github.com/tessro/cadence/internal/core"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventStatus EventType = iota
	EventTrackChange
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventStop
	EventVolumeChange
	EventOptionsChange
	EventDisconnected
)

// String returns the event name used in templates and JSON output.
func (t EventType) String() string {
	switch t {
	case EventStatus:
		return "status"
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventTrackSkip:
		return "track_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	case EventVolumeChange:
		return "volume_change"
	case EventOptionsChange:
		return "options_change"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Snapshot is the player state at one point in time.
type Snapshot struct {
	Status core.Status `json:"status"`
	Track  *core.Track `json:"track,omitempty"`
}

// HasTrack reports whether a song is loaded.
func (s *Snapshot) HasTrack() bool {
	return s != nil && s.Track != nil
}

// Event represents a playback state change.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Previous  *Snapshot `json:"previous,omitempty"`
	Current   *Snapshot `json:"current,omitempty"`
}

// completeThreshold is the fraction of a song that must have played for a
// track change to count as a completion rather than a skip.
const completeThreshold = 0.95

// diffStates compares two snapshots and returns the detected events.
func diffStates(prev, curr *Snapshot, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	if prev == nil {
		if curr.HasTrack() {
			add(EventTrackChange)
		}
		return events
	}

	if trackChanged(prev, curr) {
		switch {
		case prev.HasTrack() && wasCompleted(prev):
			add(EventTrackComplete)
		case prev.HasTrack() && prev.Status.HasSong():
			add(EventTrackSkip)
		}
		if curr.HasTrack() {
			add(EventTrackChange)
		}
	}

	switch p, c := prev.Status.State, curr.Status.State; {
	case p == c:
	case c == core.StateStopped:
		add(EventStop)
	case c == core.StatePaused:
		add(EventPause)
	case c == core.StatePlaying:
		add(EventResume)
	}

	if prev.Status.Volume != curr.Status.Volume {
		add(EventVolumeChange)
	}
	if optionsChanged(&prev.Status, &curr.Status) {
		add(EventOptionsChange)
	}
	return events
}

// trackChanged compares songs by queue id, then by file.
func trackChanged(prev, curr *Snapshot) bool {
	if !prev.HasTrack() && !curr.HasTrack() {
		return false
	}
	if !prev.HasTrack() || !curr.HasTrack() {
		return true
	}
	if prev.Track.ID >= 0 && curr.Track.ID >= 0 && prev.Track.ID != curr.Track.ID {
		return true
	}
	return prev.Track.File != curr.Track.File
}

// wasCompleted returns true if the song likely played to its end.
func wasCompleted(s *Snapshot) bool {
	length := s.Status.Length
	if length <= 0 && s.Track != nil {
		length = s.Track.Duration
	}
	if length <= 0 {
		return false
	}
	return float64(s.Status.Elapsed) >= float64(length)*completeThreshold
}

func optionsChanged(a, b *core.Status) bool {
	return a.Random != b.Random ||
		a.Repeat != b.Repeat ||
		a.Single != b.Single ||
		a.Consume != b.Consume ||
		a.Crossfade != b.Crossfade
}
