package conn

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/mpd/proto"
	"github.com/tessro/cadence/internal/mpdtest"
)

type transitions struct {
	mu  sync.Mutex
	got []State
}

func (tr *transitions) record(sc StateChange) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, sc.To)
}

func (tr *transitions) states() []State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]State(nil), tr.got...)
}

func TestConnectHandshake(t *testing.T) {
	srv := mpdtest.New(t, mpdtest.WithVersion("0.21.11"))
	var tr transitions
	c := New(Options{Timeout: 2 * time.Second, OnStateChange: tr.record})

	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if c.State() != ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), ConnectedActive)
	}
	if got, want := c.Version(), (proto.Version{Major: 0, Minor: 21, Patch: 11}); got != want {
		t.Errorf("Version() = %v, want %v", got, want)
	}
	if diff := cmp.Diff([]State{Connecting, ConnectedActive}, tr.states()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Exec("status"); err != nil {
		t.Fatalf("Exec(status) error = %v", err)
	}
	got := srv.Received()
	if len(got) < 2 || got[0] != "commands" {
		t.Errorf("first command = %v, want commands before anything else", got)
	}
}

func TestConnectPassword(t *testing.T) {
	srv := mpdtest.New(t, mpdtest.WithPassword("s3cret"))

	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c.Close()

	bad := srv.Profile()
	bad.Password = "wrong"
	err := c.Connect(context.Background(), bad)
	if !errors.Is(err, cerrors.ErrAuthFailed) {
		t.Errorf("Connect() error = %v, want ErrAuthFailed", err)
	}
	if c.State() != Disconnected {
		t.Errorf("State() = %v, want %v", c.State(), Disconnected)
	}
}

func TestConnectBadGreeting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		_, _ = nc.Write([]byte("HELLO SMTP\n"))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	c := New(Options{Timeout: 2 * time.Second})
	p := mpdtest.New(t).Profile()
	p.Host, p.Port = addr.IP.String(), addr.Port
	if err := c.Connect(context.Background(), p); err == nil {
		t.Fatal("Connect() succeeded against a non-MPD server")
	}
	if c.State() != Disconnected {
		t.Errorf("State() = %v, want %v", c.State(), Disconnected)
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	p := mpdtest.New(t).Profile()
	p.Host, p.Port = addr.IP.String(), addr.Port
	c := New(Options{Timeout: time.Second})
	err = c.Connect(context.Background(), p)
	if !errors.Is(err, cerrors.ErrConnectionRefused) {
		t.Errorf("Connect() error = %v, want ErrConnectionRefused", err)
	}
}

func TestAckKeepsSession(t *testing.T) {
	srv := mpdtest.New(t)
	srv.Fail("play", proto.AckArg, "Bad song index")

	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err := c.Exec("play 99")
	var ack *proto.AckError
	if !errors.As(err, &ack) {
		t.Fatalf("Exec() error = %v, want *proto.AckError", err)
	}
	if ack.Code != proto.AckArg || ack.Message != "Bad song index" {
		t.Errorf("ack = %+v", ack)
	}
	if c.State() != ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), ConnectedActive)
	}
	if _, err := c.Exec("ping"); err != nil {
		t.Errorf("Exec(ping) after ACK error = %v", err)
	}
}

func TestCommandWhitelist(t *testing.T) {
	srv := mpdtest.New(t, mpdtest.WithAllowed("ping", "status"))
	srv.Reply("albumart", "")

	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err := c.Exec("albumart foo.flac 0")
	if !errors.Is(err, cerrors.ErrCommandNotAllowed) {
		t.Errorf("Exec() error = %v, want ErrCommandNotAllowed", err)
	}
	if srv.Count("albumart") != 0 {
		t.Error("disallowed command reached the server")
	}
}

func TestExecCommandList(t *testing.T) {
	srv := mpdtest.New(t)
	srv.Reply("status", "state: play\n")
	srv.Reply("currentsong", "file: a.flac\n")

	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	resp, err := c.Exec("status", "currentsong")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	want := [][]string{{"state: play"}, {"file: a.flac"}}
	if diff := cmp.Diff(want, resp.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestIdleBreak(t *testing.T) {
	srv := mpdtest.New(t)
	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.StartIdle(); err != nil {
		t.Fatalf("StartIdle() error = %v", err)
	}
	if c.State() != ConnectedIdle {
		t.Fatalf("State() = %v, want %v", c.State(), ConnectedIdle)
	}
	if _, err := c.Exec("status"); err == nil {
		t.Error("Exec() while idling succeeded")
	}

	if _, err := c.BreakIdle(); err != nil {
		t.Fatalf("BreakIdle() error = %v", err)
	}
	if c.State() != ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), ConnectedActive)
	}
	if _, err := c.Exec("status"); err != nil {
		t.Errorf("Exec() after BreakIdle error = %v", err)
	}
	if v := srv.Violations(); len(v) != 0 {
		t.Errorf("server saw commands while idling: %v", v)
	}
}

func TestIdleNotification(t *testing.T) {
	srv := mpdtest.New(t)
	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.StartIdle(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, srv)
	srv.Notify("player")

	select {
	case res := <-c.IdleDone():
		subs, err := c.FinishIdle(res)
		if err != nil {
			t.Fatalf("FinishIdle() error = %v", err)
		}
		if diff := cmp.Diff([]string{"player"}, subs); diff != "" {
			t.Errorf("subsystems mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no idle notification")
	}
	if c.State() != ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), ConnectedActive)
	}
}

func TestDropWhileIdle(t *testing.T) {
	srv := mpdtest.New(t)
	var tr transitions
	c := New(Options{Timeout: 2 * time.Second, OnStateChange: tr.record})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	if err := c.StartIdle(); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, srv)
	srv.Drop()

	select {
	case res := <-c.IdleDone():
		if _, err := c.FinishIdle(res); !errors.Is(err, cerrors.ErrNotConnected) {
			t.Errorf("FinishIdle() error = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle reader did not notice the drop")
	}
	if c.State() != Disconnected {
		t.Errorf("State() = %v, want %v", c.State(), Disconnected)
	}
	if _, err := c.Exec("status"); !errors.Is(err, cerrors.ErrNotConnected) {
		t.Errorf("Exec() error = %v, want ErrNotConnected", err)
	}
}

func TestIdleAckKeepsSession(t *testing.T) {
	srv := mpdtest.New(t)
	srv.RejectIdle(proto.AckPermission, `you don't have permission for "idle"`)
	var tr transitions
	c := New(Options{Timeout: 2 * time.Second, OnStateChange: tr.record})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.StartIdle(); err != nil {
		t.Fatal(err)
	}
	select {
	case res := <-c.IdleDone():
		subs, err := c.FinishIdle(res)
		if err != nil || subs != nil {
			t.Fatalf("FinishIdle() = %v, %v, want no subsystems and no error", subs, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle reply never arrived")
	}

	if c.State() != ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), ConnectedActive)
	}
	want := []State{Connecting, ConnectedActive, ConnectedIdle, ConnectedNonIdle, ConnectedActive}
	if diff := cmp.Diff(want, tr.states()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	if c.CanIdle() {
		t.Error("CanIdle() = true after the server rejected idle")
	}
	if err := c.StartIdle(); !errors.Is(err, ErrIdleUnavailable) {
		t.Errorf("StartIdle() error = %v, want ErrIdleUnavailable", err)
	}
	if _, err := c.Exec("ping"); err != nil {
		t.Errorf("Exec(ping) error = %v", err)
	}

	// A new session may idle again.
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	if !c.CanIdle() {
		t.Error("CanIdle() = false after reconnecting")
	}
}

func TestIdleNotPermitted(t *testing.T) {
	srv := mpdtest.New(t, mpdtest.WithAllowed("ping", "status"))
	c := New(Options{Timeout: 2 * time.Second})
	if err := c.Connect(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.CanIdle() {
		t.Error("CanIdle() = true, want false when idle is not in the command list")
	}
	if err := c.StartIdle(); !errors.Is(err, ErrIdleUnavailable) {
		t.Errorf("StartIdle() error = %v, want ErrIdleUnavailable", err)
	}
	if n := srv.Count("idle"); n != 0 {
		t.Errorf("idle sent %d times, want 0", n)
	}
	if c.State() != ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), ConnectedActive)
	}
}

func waitIdle(t *testing.T, srv *mpdtest.Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !srv.Idling() {
		if time.Now().After(deadline) {
			t.Fatal("server never saw idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
