package cli

import (
	"bytes"
	"testing"
	"time"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"a longer title", 8, "a lon..."},
		{"abcdef", 2, "ab"},
		{"Sigur Rós – Hoppípolla", 12, "Sigur Rós..."},
	}
	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{65 * time.Second, "1:05"},
		{3*time.Hour + 2*time.Minute + 1500*time.Millisecond, "3:02:01"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		cur, total time.Duration
		want       string
	}{
		{0, 0, "────"},
		{time.Second, 2 * time.Second, "━━──"},
		{5 * time.Second, 2 * time.Second, "━━━━"},
	}
	for _, tt := range tests {
		if got := FormatProgress(tt.cur, tt.total, 4); got != tt.want {
			t.Errorf("FormatProgress(%v, %v) = %q, want %q", tt.cur, tt.total, got, tt.want)
		}
	}
}

func TestTableWriter(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableWriter(&buf, "ID", "NAME")
	tbl.Row("0", "alsa")
	tbl.Row("12", "http stream")
	tbl.Flush()

	want := "ID  NAME\n0   alsa\n12  http stream\n"
	if got := buf.String(); got != want {
		t.Errorf("table =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatSizeAndAge(t *testing.T) {
	if got := FormatSize(2048); got != "2.0 kB" {
		t.Errorf("FormatSize(2048) = %q", got)
	}
	if got := FormatAge(time.Time{}); got != "-" {
		t.Errorf("FormatAge(zero) = %q", got)
	}
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "ON", "true", "1", "yes"} {
		if v, err := parseOnOff(s); err != nil || !v {
			t.Errorf("parseOnOff(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"off", "false", "0", "no"} {
		if v, err := parseOnOff(s); err != nil || v {
			t.Errorf("parseOnOff(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("parseOnOff(maybe) succeeded")
	}
}

func TestSubsystemsValue(t *testing.T) {
	v := newSubsystemsValue()
	if err := v.Set("player, mixer"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("options"); err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != "player,mixer,options" {
		t.Errorf("String() = %q", got)
	}
	if err := v.Set("jukebox"); err == nil {
		t.Error("unknown subsystem accepted")
	}
}
