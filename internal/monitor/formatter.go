package monitor

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
	err           error
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. An invalid template is
// reported by NewFormatter.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl == "" {
			return
		}
		t, err := template.New("format").Parse(tmpl)
		if err != nil {
			f.err = err
			return
		}
		f.template = t
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) (*Formatter, error) {
	f := &Formatter{showEmoji: true}
	for _, opt := range opts {
		opt(f)
	}
	if f.err != nil {
		return nil, fmt.Errorf("invalid format template: %w", f.err)
	}
	return f, nil
}

// Format formats an event as a string. Plain status events have no text
// and format as "".
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	if e.Type == EventStatus {
		return ""
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, eventDescription(e))
	return strings.Join(parts, " ")
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      e.Type.String(),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
		Volume:    -1,
	}
	if e.Current != nil {
		st := e.Current.Status
		data.State = st.State.String()
		data.Volume = st.Volume
		data.Elapsed = formatClock(st.Elapsed)
		data.Length = formatClock(st.Length)
		if t := e.Current.Track; t != nil {
			data.Title = t.DisplayTitle()
			data.Artist = t.DisplayArtist()
			data.Album = t.Album
			data.File = t.File
		}
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	State     string
	Title     string
	Artist    string
	Album     string
	File      string
	Elapsed   string
	Length    string
	Volume    int
}

func eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current.HasTrack() {
			return "Now playing: " + songLine(e.Current)
		}
		return "Track changed"
	case EventTrackComplete:
		if e.Previous.HasTrack() {
			return "Finished: " + songLine(e.Previous)
		}
		return "Track completed"
	case EventTrackSkip:
		if e.Previous.HasTrack() {
			return "Skipped: " + songLine(e.Previous)
		}
		return "Track skipped"
	case EventPause:
		return "Paused"
	case EventResume:
		return "Resumed"
	case EventStop:
		return "Stopped"
	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("Volume: %d%%", e.Current.Status.Volume)
		}
		return "Volume changed"
	case EventOptionsChange:
		if e.Current != nil {
			return "Options: " + optionsLine(e.Current)
		}
		return "Options changed"
	case EventDisconnected:
		return "Disconnected"
	case EventStatus:
		if e.Current != nil {
			st := e.Current.Status
			return fmt.Sprintf("%s %s/%s", st.State, formatClock(st.Elapsed), formatClock(st.Length))
		}
		return "Status"
	default:
		return "Unknown event"
	}
}

func songLine(s *Snapshot) string {
	if artist := s.Track.DisplayArtist(); artist != "" {
		return artist + " - " + s.Track.DisplayTitle()
	}
	return s.Track.DisplayTitle()
}

func optionsLine(s *Snapshot) string {
	st := s.Status
	var on []string
	for _, o := range []struct {
		name string
		set  bool
	}{
		{"random", st.Random},
		{"repeat", st.Repeat},
		{"single", st.Single},
		{"consume", st.Consume},
	} {
		if o.set {
			on = append(on, o.name)
		}
	}
	if st.Crossfade > 0 {
		on = append(on, fmt.Sprintf("crossfade %ds", st.Crossfade))
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ", ")
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, s)
}

func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎵"
	case EventTrackComplete:
		return "✅"
	case EventTrackSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventStop:
		return "⏹️"
	case EventVolumeChange:
		return "🔊"
	case EventOptionsChange:
		return "🔀"
	case EventDisconnected:
		return "🔌"
	default:
		return "•"
	}
}
