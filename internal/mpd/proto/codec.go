package proto

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	lineOK     = "OK"
	lineListOK = "list_OK"
)

// ErrBadLine is returned when a command line would break framing.
var ErrBadLine = errors.New("command contains a newline")

// MaxBinary is the largest binary payload accepted, per chunk and in total.
const MaxBinary = 64 << 20

// ErrBinaryTooLarge is returned for binary sizes above MaxBinary.
var ErrBinaryTooLarge = errors.New("binary payload too large")

// Pair is one `key: value` line of a response.
type Pair struct {
	Key   string
	Value string
}

// SplitPair splits a response line on the first ": ". A line ending in a
// bare colon yields an empty value.
func SplitPair(line string) (Pair, bool) {
	k, v, ok := strings.Cut(line, ": ")
	if !ok {
		k, ok = strings.CutSuffix(line, ":")
		if !ok || k == "" || strings.ContainsAny(k, " ") {
			return Pair{}, false
		}
		return Pair{Key: k}, true
	}
	return Pair{Key: k, Value: v}, true
}

// Response is the body of one command reply, without its terminator.
type Response struct {
	Lines []string

	// Segments holds the lines of each sub-command when the command list
	// was opened with command_list_ok_begin.
	Segments [][]string

	// Binary holds the raw payload of a `binary: N` chunk.
	Binary []byte
}

// Pairs decodes the response lines into key/value pairs, skipping lines
// without a separator.
func (r *Response) Pairs() []Pair {
	if r == nil {
		return nil
	}
	return pairsOf(r.Lines)
}

// SegmentPairs decodes the i-th list segment.
func (r *Response) SegmentPairs(i int) []Pair {
	if r == nil || i < 0 || i >= len(r.Segments) {
		return nil
	}
	return pairsOf(r.Segments[i])
}

func pairsOf(lines []string) []Pair {
	out := make([]Pair, 0, len(lines))
	for _, l := range lines {
		if p, ok := SplitPair(l); ok {
			out = append(out, p)
		}
	}
	return out
}

// Codec reads and writes protocol lines on a stream. It is not safe for
// concurrent use by multiple readers or multiple writers.
type Codec struct {
	r *bufio.Reader
	w *bufio.Writer
}

// NewCodec wraps rw.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		r: bufio.NewReaderSize(rw, 32*1024),
		w: bufio.NewWriter(rw),
	}
}

// SendCommand writes one command line followed by a newline.
func (c *Codec) SendCommand(line string) error {
	if strings.ContainsAny(line, "\n\r") {
		return ErrBadLine
	}
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	return c.w.Flush()
}

// SendCommands writes several lines with a single flush.
func (c *Codec) SendCommands(lines []string) error {
	for _, line := range lines {
		if strings.ContainsAny(line, "\n\r") {
			return ErrBadLine
		}
		if _, err := c.w.WriteString(line); err != nil {
			return err
		}
		if err := c.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

// ReadLine reads one line without its terminator. It returns io.EOF when
// the stream ends cleanly between lines.
func (c *Codec) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// ReadResponse reads lines until OK or ACK. With list set, list_OK lines
// split the body into Segments. An ACK is returned as *AckError along with
// whatever was read before it.
func (c *Codec) ReadResponse(list bool) (*Response, error) {
	resp := &Response{}
	var seg []string
	for {
		line, err := c.ReadLine()
		if err != nil {
			return nil, err
		}

		switch {
		case line == lineOK:
			if list && len(seg) > 0 {
				resp.Segments = append(resp.Segments, seg)
			}
			return resp, nil
		case line == lineListOK && list:
			resp.Segments = append(resp.Segments, seg)
			seg = nil
			continue
		case strings.HasPrefix(line, "ACK "):
			ack, _ := ParseAck(line)
			return resp, ack
		case strings.HasPrefix(line, "binary: "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "binary: "))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("bad binary header %q", line)
			}
			data, err := c.readBinary(n)
			if err != nil {
				return nil, err
			}
			resp.Binary = append(resp.Binary, data...)
			continue
		}

		resp.Lines = append(resp.Lines, line)
		if list {
			seg = append(seg, line)
		}
	}
}

// readBinary reads exactly n payload bytes and the newline that follows them.
func (c *Codec) readBinary(n int) ([]byte, error) {
	if n > MaxBinary {
		return nil, fmt.Errorf("%w: %d bytes", ErrBinaryTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, err
	}
	nl, err := c.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if nl != '\n' {
		return nil, fmt.Errorf("binary chunk not followed by newline (got %q)", nl)
	}
	return buf, nil
}
