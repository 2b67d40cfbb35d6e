package parse

import (
	"strings"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// Outputs parses an `outputs` reply; each `outputid:` starts a new output.
func Outputs(pairs []proto.Pair) []core.Output {
	var out []core.Output
	for _, p := range pairs {
		if p.Key == "outputid" {
			out = append(out, core.Output{ID: atoi(p.Key, p.Value)})
			continue
		}
		if len(out) == 0 {
			continue
		}
		o := &out[len(out)-1]
		switch p.Key {
		case "outputname":
			o.Name = p.Value
		case "outputenabled":
			o.Enabled = flag(p.Value)
		case "plugin":
			o.Plugin = p.Value
		}
	}
	return out
}

// Artists parses `list <nameKey> group <mbidKey>`. Group lines precede the
// names they apply to; a name seen under several MBIDs is merged into one
// artist carrying all of them in order.
func Artists(pairs []proto.Pair, nameKey, mbidKey string) []core.Artist {
	var (
		out   []core.Artist
		index = make(map[string]int)
		mbid  string
	)
	for _, p := range pairs {
		switch {
		case mbidKey != "" && strings.EqualFold(p.Key, mbidKey):
			mbid = p.Value
		case strings.EqualFold(p.Key, nameKey):
			if p.Value == "" {
				continue
			}
			i, ok := index[p.Value]
			if !ok {
				i = len(out)
				index[p.Value] = i
				out = append(out, core.Artist{Name: p.Value})
			}
			if mbid != "" && !contains(out[i].MBIDs, mbid) {
				out[i].MBIDs = append(out[i].MBIDs, mbid)
			}
		}
	}
	return out
}

// Albums parses `list album group <artistKey> group musicbrainz_albumid`
// (optionally also grouped by albumsort). Group values stay in effect until
// the server sends a new value for that key. Duplicates by Album.Key are
// dropped, keeping the first occurrence.
func Albums(pairs []proto.Pair, artistKey string) []core.Album {
	var (
		out    []core.Album
		seen   = make(map[string]bool)
		artist string
		mbid   string
		sort   string
	)
	for _, p := range pairs {
		switch {
		case strings.EqualFold(p.Key, artistKey):
			artist = p.Value
		case strings.EqualFold(p.Key, "MUSICBRAINZ_ALBUMID"):
			mbid = p.Value
		case strings.EqualFold(p.Key, "AlbumSort"):
			sort = p.Value
		case strings.EqualFold(p.Key, "Album"):
			if p.Value == "" {
				continue
			}
			a := core.Album{Name: p.Value, Artist: artist, MBID: mbid, Sort: sort}
			if a.Sort == "" {
				a.Sort = a.Name
			}
			if seen[a.Key()] {
				continue
			}
			seen[a.Key()] = true
			out = append(out, a)
		}
	}
	return out
}

// Values returns every value of key, in order.
func Values(pairs []proto.Pair, key string) []string {
	var out []string
	for _, p := range pairs {
		if strings.EqualFold(p.Key, key) {
			out = append(out, p.Value)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
