// Package proto implements the MPD line protocol: command encoding,
// response framing, ACK errors and binary chunks.
package proto

import (
	"errors"
	"strconv"
	"strings"
)

// Command builds a command line from a name and its arguments. Arguments are
// quoted only when they need it.
func Command(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		if needsQuote(a) {
			b.WriteString(Quote(a))
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}

// Quote wraps s in double quotes, escaping backslashes and quotes.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\"\\'")
}

// Itoa formats an integer argument.
func Itoa(n int) string {
	return strconv.Itoa(n)
}

// Bool formats a boolean argument as 0 or 1.
func Bool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Range formats a start:end range argument. A negative end leaves it open.
func Range(start, end int) string {
	if end < 0 {
		return strconv.Itoa(start) + ":"
	}
	return strconv.Itoa(start) + ":" + strconv.Itoa(end)
}

// CommandList wraps lines in a command list. With ok set the server
// acknowledges each command with list_OK.
func CommandList(ok bool, lines ...string) []string {
	begin := "command_list_begin"
	if ok {
		begin = "command_list_ok_begin"
	}
	out := make([]string, 0, len(lines)+2)
	out = append(out, begin)
	out = append(out, lines...)
	return append(out, "command_list_end")
}

var (
	errUnterminated = errors.New("unterminated quoted argument")
	errTrailing     = errors.New("trailing backslash")
)

// Tokenize splits a command line into its name and arguments, undoing the
// quoting applied by Command.
func Tokenize(line string) ([]string, error) {
	var (
		out []string
		cur strings.Builder
	)
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			cur.Reset()
			i++
			closed := false
			for i < len(line) {
				ch := line[i]
				if ch == '\\' {
					if i+1 >= len(line) {
						return nil, errTrailing
					}
					cur.WriteByte(line[i+1])
					i += 2
					continue
				}
				if ch == '"' {
					closed = true
					i++
					break
				}
				cur.WriteByte(ch)
				i++
			}
			if !closed {
				return nil, errUnterminated
			}
			out = append(out, cur.String())
		default:
			start := i
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
			out = append(out, line[start:i])
		}
	}
	return out, nil
}
