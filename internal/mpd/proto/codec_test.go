package proto

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type rw struct {
	io.Reader
	io.Writer
}

func newTestCodec(in string) (*Codec, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewCodec(rw{strings.NewReader(in), out}), out
}

func TestSendCommand(t *testing.T) {
	c, out := newTestCodec("")
	if err := c.SendCommand(`play 3`); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if err := c.SendCommands([]string{"command_list_begin", "next", "command_list_end"}); err != nil {
		t.Fatalf("SendCommands() error = %v", err)
	}
	want := "play 3\ncommand_list_begin\nnext\ncommand_list_end\n"
	if out.String() != want {
		t.Errorf("wrote %q, want %q", out.String(), want)
	}
	if err := c.SendCommand("bad\nline"); !errors.Is(err, ErrBadLine) {
		t.Errorf("SendCommand(newline) error = %v, want ErrBadLine", err)
	}
}

func TestReadResponse(t *testing.T) {
	c, _ := newTestCodec("file: foo.mp3\nTitle: Song\nOK\n")
	resp, err := c.ReadResponse(false)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	want := []Pair{{"file", "foo.mp3"}, {"Title", "Song"}}
	if diff := cmp.Diff(want, resp.Pairs()); diff != "" {
		t.Errorf("Pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestReadResponseAck(t *testing.T) {
	c, _ := newTestCodec("ACK [50@0] {play} song doesn't exist\nOK\n")
	_, err := c.ReadResponse(false)

	var ack *AckError
	if !errors.As(err, &ack) {
		t.Fatalf("ReadResponse() error = %v, want *AckError", err)
	}
	want := &AckError{Code: AckNoExist, Index: 0, Command: "play", Message: "song doesn't exist"}
	if diff := cmp.Diff(want, ack); diff != "" {
		t.Errorf("AckError mismatch (-want +got):\n%s", diff)
	}

	// The codec stops at the ACK; the next line is still readable.
	line, err := c.ReadLine()
	if err != nil || line != "OK" {
		t.Errorf("ReadLine() = %q, %v; want OK", line, err)
	}
}

func TestReadResponseList(t *testing.T) {
	c, _ := newTestCodec("volume: 50\nlist_OK\nfile: a.mp3\nlist_OK\nOK\n")
	resp, err := c.ReadResponse(true)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if len(resp.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(resp.Segments))
	}
	if diff := cmp.Diff([]Pair{{"file", "a.mp3"}}, resp.SegmentPairs(1)); diff != "" {
		t.Errorf("segment 1 mismatch (-want +got):\n%s", diff)
	}
	if got := len(resp.Lines); got != 2 {
		t.Errorf("len(Lines) = %d, want 2", got)
	}
}

func TestReadResponseBinary(t *testing.T) {
	payload := "\x89PNG\n\x00OK\nbinary"
	in := "size: 100\ntype: image/png\nbinary: " + itoa(len(payload)) + "\n" + payload + "\nOK\n"
	c, _ := newTestCodec(in)

	resp, err := c.ReadResponse(false)
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if string(resp.Binary) != payload {
		t.Errorf("Binary = %q, want %q", resp.Binary, payload)
	}
	want := []Pair{{"size", "100"}, {"type", "image/png"}}
	if diff := cmp.Diff(want, resp.Pairs()); diff != "" {
		t.Errorf("Pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestReadResponseBinaryTooLarge(t *testing.T) {
	c, _ := newTestCodec("size: 1\nbinary: " + itoa(MaxBinary+1) + "\nxx\nOK\n")
	if _, err := c.ReadResponse(false); !errors.Is(err, ErrBinaryTooLarge) {
		t.Errorf("ReadResponse() error = %v, want ErrBinaryTooLarge", err)
	}
}

func TestReadResponseEOF(t *testing.T) {
	c, _ := newTestCodec("volume: 5\n")
	if _, err := c.ReadResponse(false); !errors.Is(err, io.EOF) {
		t.Errorf("ReadResponse() error = %v, want io.EOF", err)
	}

	c, _ = newTestCodec("partial")
	if _, err := c.ReadLine(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadLine() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestParseAck(t *testing.T) {
	tests := []struct {
		line string
		want *AckError
	}{
		{"ACK [2@1] {add} wrong number of arguments", &AckError{Code: 2, Index: 1, Command: "add", Message: "wrong number of arguments"}},
		{"ACK [5@0] {} unknown command \"foo\"", &AckError{Code: 5, Message: "unknown command \"foo\""}},
		{"ACK garbled", &AckError{Message: "garbled"}},
	}
	for _, tt := range tests {
		got, ok := ParseAck(tt.line)
		if !ok {
			t.Fatalf("ParseAck(%q) not recognised", tt.line)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseAck(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
	if _, ok := ParseAck("OK"); ok {
		t.Error("ParseAck(OK) should not match")
	}
}

func TestParseGreeting(t *testing.T) {
	v, err := ParseGreeting("OK MPD 0.21.11")
	if err != nil {
		t.Fatalf("ParseGreeting() error = %v", err)
	}
	if v != (Version{0, 21, 11}) {
		t.Errorf("version = %v, want 0.21.11", v)
	}
	if !v.AtLeast(0, 21, 0) || v.AtLeast(0, 22, 0) {
		t.Errorf("AtLeast comparisons wrong for %v", v)
	}
	if _, err := ParseGreeting("HELLO"); err == nil {
		t.Error("ParseGreeting(HELLO) expected error")
	}
}

func itoa(n int) string { return Itoa(n) }
