package parse

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// Status maps a `status` reply onto core.Status. Missing numbers stay 0;
// a missing volume is reported as -1.
func Status(pairs []proto.Pair) core.Status {
	s := core.Status{Volume: -1}

	var sawElapsed, sawDuration bool
	var legacyTime string

	for _, p := range pairs {
		switch strings.ToLower(p.Key) {
		case "state":
			switch p.Value {
			case "play":
				s.State = core.StatePlaying
			case "pause":
				s.State = core.StatePaused
			case "stop":
				s.State = core.StateStopped
			default:
				log.Debug().Str("state", p.Value).Msg("unknown player state")
			}
		case "volume":
			s.Volume = atoi(p.Key, p.Value)
			if s.Volume < 0 {
				s.Volume = -1
			}
		case "repeat":
			s.Repeat = flag(p.Value)
		case "random":
			s.Random = flag(p.Value)
		case "single":
			s.Single = flag(p.Value)
		case "consume":
			s.Consume = flag(p.Value)
		case "song":
			s.Song = atoi(p.Key, p.Value)
		case "songid":
			s.SongID = atoi(p.Key, p.Value)
		case "nextsong":
			s.NextSong = atoi(p.Key, p.Value)
		case "nextsongid":
			s.NextSongID = atoi(p.Key, p.Value)
		case "elapsed":
			s.Elapsed = seconds(p.Key, p.Value)
			sawElapsed = true
		case "duration":
			s.Length = seconds(p.Key, p.Value)
			sawDuration = true
		case "time":
			legacyTime = p.Value
		case "bitrate":
			s.Bitrate = atoi(p.Key, p.Value)
		case "audio":
			s.SampleRate, s.BitDepth, s.Channels = audioFormat(p.Value)
		case "playlist":
			s.PlaylistVersion = atoi(p.Key, p.Value)
		case "playlistlength":
			s.PlaylistLength = atoi(p.Key, p.Value)
		case "xfade":
			s.Crossfade = atoi(p.Key, p.Value)
		case "updating_db":
			s.UpdatingDB = atoi(p.Key, p.Value)
		case "error":
			s.Error = p.Value
		}
	}

	// Servers before 0.20 only send time: elapsed:total.
	if legacyTime != "" && (!sawElapsed || !sawDuration) {
		e, total, _ := strings.Cut(legacyTime, ":")
		if !sawElapsed {
			s.Elapsed = seconds("time", e)
		}
		if !sawDuration {
			s.Length = seconds("time", total)
		}
	}

	return s
}

// audioFormat parses "samplerate:bits:channels". Bits may be "f" for
// floating point (reported as 32) or a DSD rate; the sample rate may be
// "dsd64" and similar.
func audioFormat(v string) (rate, bits, channels int) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		log.Debug().Str("audio", v).Msg("ignoring malformed audio format")
		return 0, 0, 0
	}
	if strings.HasPrefix(parts[0], "dsd") {
		rate = atoi("audio", strings.TrimPrefix(parts[0], "dsd")) * 44100
		bits = 1
	} else {
		rate = atoi("audio", parts[0])
		switch parts[1] {
		case "f":
			bits = 32
		case "dsd":
			bits = 1
		default:
			bits = atoi("audio", parts[1])
		}
	}
	channels = atoi("audio", parts[2])
	return rate, bits, channels
}
