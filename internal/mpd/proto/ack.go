package proto

import (
	"fmt"
	"strconv"
	"strings"
)

// ACK error codes as defined by the server.
const (
	AckNotList       = 1
	AckArg           = 2
	AckPassword      = 3
	AckPermission    = 4
	AckUnknown       = 5
	AckNoExist       = 50
	AckPlaylistMax   = 51
	AckSystem        = 52
	AckPlaylistLoad  = 53
	AckUpdateAlready = 54
	AckPlayerSync    = 55
	AckExist         = 56
)

// AckError is a command failure reported by the server. The connection
// stays usable after one.
type AckError struct {
	Code    int
	Index   int
	Command string
	Message string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("mpd error %d@%d {%s}: %s", e.Code, e.Index, e.Command, e.Message)
}

// ParseAck parses a line of the form `ACK [code@index] {command} message`.
func ParseAck(line string) (*AckError, bool) {
	rest, ok := strings.CutPrefix(line, "ACK ")
	if !ok {
		return nil, false
	}
	e := &AckError{}

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			e.Message = rest
			return e, true
		}
		code, index, _ := strings.Cut(rest[1:end], "@")
		e.Code, _ = strconv.Atoi(code)
		e.Index, _ = strconv.Atoi(index)
		rest = strings.TrimLeft(rest[end+1:], " ")
	}

	if strings.HasPrefix(rest, "{") {
		end := strings.IndexByte(rest, '}')
		if end >= 0 {
			e.Command = rest[1:end]
			rest = strings.TrimLeft(rest[end+1:], " ")
		}
	}

	e.Message = rest
	return e, true
}
