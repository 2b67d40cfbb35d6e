package proto

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the protocol version announced in the greeting.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is the given version or newer.
func (v Version) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// ParseGreeting parses the `OK MPD x.y.z` line sent on connect.
func ParseGreeting(line string) (Version, error) {
	rest, ok := strings.CutPrefix(line, "OK MPD ")
	if !ok {
		return Version{}, fmt.Errorf("unexpected greeting: %q", line)
	}
	parts := strings.SplitN(strings.TrimSpace(rest), ".", 3)
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("bad protocol version %q: %w", rest, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}
