package parse

import (
	"strings"

	"github.com/tessro/cadence/internal/mpd/proto"
)

// Changed returns the subsystems named by `changed:` lines of an idle reply.
func Changed(pairs []proto.Pair) []string {
	return Values(pairs, "changed")
}

// Commands returns the set of commands from a `commands` reply.
func Commands(pairs []proto.Pair) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range pairs {
		if p.Key == "command" && p.Value != "" {
			out[p.Value] = struct{}{}
		}
	}
	return out
}

// Chunk is one slice of a binary transfer such as `albumart` or `readpicture`.
type Chunk struct {
	Size int
	Type string
}

// PictureChunk reads the size and MIME type header of a binary reply.
func PictureChunk(pairs []proto.Pair) Chunk {
	var c Chunk
	for _, p := range pairs {
		switch p.Key {
		case "size":
			c.Size = atoi(p.Key, p.Value)
		case "type":
			c.Type = p.Value
		}
	}
	return c
}

// Stats is the reply to `stats`.
type Stats struct {
	Artists    int `json:"artists"`
	Albums     int `json:"albums"`
	Songs      int `json:"songs"`
	Uptime     int `json:"uptime"`
	Playtime   int `json:"playtime"`
	DBPlaytime int `json:"db_playtime"`
	DBUpdate   int `json:"db_update"`
}

// ParseStats parses a `stats` reply.
func ParseStats(pairs []proto.Pair) Stats {
	var s Stats
	for _, p := range pairs {
		switch strings.ToLower(p.Key) {
		case "artists":
			s.Artists = atoi(p.Key, p.Value)
		case "albums":
			s.Albums = atoi(p.Key, p.Value)
		case "songs":
			s.Songs = atoi(p.Key, p.Value)
		case "uptime":
			s.Uptime = atoi(p.Key, p.Value)
		case "playtime":
			s.Playtime = atoi(p.Key, p.Value)
		case "db_playtime":
			s.DBPlaytime = atoi(p.Key, p.Value)
		case "db_update":
			s.DBUpdate = atoi(p.Key, p.Value)
		}
	}
	return s
}

// UpdateJob returns the job id of an `update` reply.
func UpdateJob(pairs []proto.Pair) int {
	for _, p := range pairs {
		if p.Key == "updating_db" {
			return atoi(p.Key, p.Value)
		}
	}
	return 0
}
