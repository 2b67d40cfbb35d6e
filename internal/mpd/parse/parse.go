// Package parse turns response pairs into domain values. Parsers never fail:
// malformed values are logged and left at their zero value so that replies
// from servers with unusual plugins still produce usable data.
package parse

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func atoi(key, v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Debug().Str("key", key).Str("value", v).Msg("ignoring malformed integer")
		return 0
	}
	return n
}

func atof(key, v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		log.Debug().Str("key", key).Str("value", v).Msg("ignoring malformed number")
		return 0
	}
	return f
}

func seconds(key, v string) time.Duration {
	return time.Duration(math.Round(atof(key, v) * float64(time.Second)))
}

// fraction parses "n" or "n/total" as used by the Track and Disc tags.
func fraction(key, v string) (n, total int) {
	head, tail, ok := strings.Cut(v, "/")
	n = atoi(key, head)
	if ok {
		total = atoi(key, tail)
	}
	return n, total
}

func timestamp(key, v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		log.Debug().Str("key", key).Str("value", v).Msg("ignoring malformed timestamp")
		return time.Time{}
	}
	return t
}

func flag(v string) bool {
	return v != "" && v != "0"
}
