package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/mpd/conn"
	"github.com/tessro/cadence/internal/mpd/proto"
	"github.com/tessro/cadence/internal/mpdtest"
)

func connect(t *testing.T, srv *mpdtest.Server) *Client {
	t.Helper()
	c := New(WithTimeout(2 * time.Second))
	t.Cleanup(func() { _ = c.Close() })
	if err := c.ConnectTo(context.Background(), srv.Profile()); err != nil {
		t.Fatalf("ConnectTo() error = %v", err)
	}
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// blocker registers a "slow" command that holds the worker until released.
func blocker(srv *mpdtest.Server) (release func()) {
	ch := make(chan struct{})
	srv.Handle("slow", func([]string) (string, error) {
		<-ch
		return "", nil
	})
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func TestNotConnectedFailsImmediately(t *testing.T) {
	c := New()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Status(ctx)
	if !errors.Is(err, cerrors.ErrNotConnected) {
		t.Errorf("Status() error = %v, want ErrNotConnected", err)
	}
}

func TestAckDoesNotDisconnect(t *testing.T) {
	srv := mpdtest.New(t)
	srv.Fail("play", proto.AckArg, "Bad song index")
	c := connect(t, srv)

	err := c.Play(context.Background(), 99)
	var ack *proto.AckError
	if !errors.As(err, &ack) {
		t.Fatalf("Play() error = %v, want *proto.AckError", err)
	}
	if ack.Code != proto.AckArg {
		t.Errorf("ack code = %d, want %d", ack.Code, proto.AckArg)
	}
	if !c.State().Connected() {
		t.Errorf("State() = %v, want connected", c.State())
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() after ACK error = %v", err)
	}
}

func TestCallbacksExactlyOnceInOrder(t *testing.T) {
	srv := mpdtest.New(t)
	c := connect(t, srv)

	const n = 50
	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		Submit(c, Command[struct{}]{Lines: []string{"ping"}}, func(_ struct{}, err error) {
			defer wg.Done()
			if err != nil {
				t.Errorf("request %d: %v", i, err)
			}
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("callback order mismatch (-want +got):\n%s", diff)
	}
}

func TestBackToBackCommandsBreakIdleOnce(t *testing.T) {
	srv := mpdtest.New(t)
	release := blocker(srv)
	defer release()
	c := connect(t, srv)
	eventually(t, "idle", srv.Idling)

	done := make(chan error, 3)
	Submit(c, Command[struct{}]{Lines: []string{"slow"}}, func(_ struct{}, err error) { done <- err })
	eventually(t, "slow to reach the server", func() bool { return srv.Count("slow") == 1 })

	Submit(c, Command[struct{}]{Lines: []string{"status"}}, func(_ struct{}, err error) { done <- err })
	Submit(c, Command[struct{}]{Lines: []string{"currentsong"}}, func(_ struct{}, err error) { done <- err })
	release()

	for i := 0; i < 3; i++ {
		if err := <-done; err != nil {
			t.Fatalf("request error = %v", err)
		}
	}
	eventually(t, "re-idle", srv.Idling)

	if got := srv.Count("noidle"); got != 1 {
		t.Errorf("noidle sent %d times, want 1", got)
	}
	if got := srv.Count("idle"); got != 2 {
		t.Errorf("idle sent %d times, want 2", got)
	}
}

func TestNoCommandWhileIdling(t *testing.T) {
	srv := mpdtest.New(t)
	c := connect(t, srv)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if err := c.Ping(context.Background()); err != nil {
					t.Errorf("Ping() error = %v", err)
					return
				}
				if i%5 == 0 {
					srv.Notify("player")
				}
			}
		}()
	}
	wg.Wait()

	if v := srv.Violations(); len(v) != 0 {
		t.Errorf("commands sent while idling: %v", v)
	}
	if !c.State().Connected() {
		t.Errorf("State() = %v, want connected", c.State())
	}
}

func TestCancelQueuedRequest(t *testing.T) {
	srv := mpdtest.New(t)
	release := blocker(srv)
	defer release()
	c := connect(t, srv)

	Submit(c, Command[struct{}]{Lines: []string{"slow"}}, func(struct{}, error) {})
	eventually(t, "slow to reach the server", func() bool { return srv.Count("slow") == 1 })

	errc := make(chan error, 1)
	ticket := Submit(c, Command[struct{}]{Lines: []string{"clear"}}, func(_ struct{}, err error) { errc <- err })
	if !c.Cancel(ticket) {
		t.Fatal("Cancel() = false for a queued request")
	}
	if c.Cancel(ticket) {
		t.Error("second Cancel() = true")
	}
	release()

	if err := <-errc; !errors.Is(err, cerrors.ErrCanceled) {
		t.Errorf("callback error = %v, want ErrCanceled", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.Count("clear") != 0 {
		t.Error("cancelled request reached the server")
	}
}

func TestIdleEventsPublished(t *testing.T) {
	srv := mpdtest.New(t)
	c := connect(t, srv)

	got := make(chan IdleEvent, 1)
	unregister := c.OnIdle(func(ev IdleEvent) { got <- ev })
	defer unregister()

	eventually(t, "idle", srv.Idling)
	srv.Notify("mixer")

	select {
	case ev := <-got:
		if diff := cmp.Diff([]string{"mixer"}, ev.Subsystems); diff != "" {
			t.Errorf("subsystems mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no idle event")
	}
}

func TestIdleRejectedFallsBackToCommands(t *testing.T) {
	srv := mpdtest.New(t)
	srv.RejectIdle(proto.AckPermission, `you don't have permission for "idle"`)
	c := connect(t, srv)

	eventually(t, "idle attempt", func() bool { return srv.Count("idle") == 1 })
	for i := 0; i < 2; i++ {
		if err := c.Ping(context.Background()); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	}
	if c.State() != conn.ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), conn.ConnectedActive)
	}
	if n := srv.Count("idle"); n != 1 {
		t.Errorf("idle sent %d times, want 1", n)
	}
	if n := srv.Sessions(); n != 1 {
		t.Errorf("Sessions() = %d, want 1", n)
	}
}

func TestNoIdleWithoutPermission(t *testing.T) {
	srv := mpdtest.New(t, mpdtest.WithAllowed("ping", "status", "currentsong"))
	c := connect(t, srv)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if n := srv.Count("idle"); n != 0 {
		t.Errorf("idle sent %d times, want 0", n)
	}
	if c.State() != conn.ConnectedActive {
		t.Errorf("State() = %v, want %v", c.State(), conn.ConnectedActive)
	}
}

// gatedDialer holds each dial until release is closed.
type gatedDialer struct {
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.entered <- struct{}{}
	<-d.release
	var nd net.Dialer
	return nd.DialContext(ctx, network, address)
}

func TestCommandQueuedBehindRunningConnect(t *testing.T) {
	srv := mpdtest.New(t)
	d := &gatedDialer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(WithTimeout(2*time.Second), WithDialer(d))
	t.Cleanup(func() { _ = c.Close() })

	connected := make(chan error, 1)
	go func() { connected <- c.ConnectTo(context.Background(), srv.Profile()) }()
	<-d.entered

	c.mu.Lock()
	pending := c.connects
	c.mu.Unlock()
	if pending != 1 {
		t.Errorf("connects = %d while connecting, want 1", pending)
	}

	pinged := make(chan error, 1)
	Submit(c, Command[struct{}]{Lines: []string{"ping"}}, func(_ struct{}, err error) { pinged <- err })
	close(d.release)

	if err := <-connected; err != nil {
		t.Fatalf("ConnectTo() error = %v", err)
	}
	select {
	case err := <-pinged:
		if err != nil {
			t.Errorf("ping error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ping callback never ran")
	}

	c.mu.Lock()
	pending = c.connects
	c.mu.Unlock()
	if pending != 0 {
		t.Errorf("connects = %d after connecting, want 0", pending)
	}
}

func TestDisconnectOnTransportError(t *testing.T) {
	srv := mpdtest.New(t)
	c := connect(t, srv)

	states := make(chan conn.StateChange, 8)
	c.OnStateChange(func(sc conn.StateChange) { states <- sc })

	eventually(t, "idle", srv.Idling)
	srv.Drop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case sc := <-states:
			if sc.To == conn.Disconnected {
				if _, err := c.Status(context.Background()); !errors.Is(err, cerrors.ErrNotConnected) {
					t.Errorf("Status() error = %v, want ErrNotConnected", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("never saw Disconnected")
		}
	}
}

func TestCloseFailsQueued(t *testing.T) {
	srv := mpdtest.New(t)
	release := blocker(srv)
	c := connect(t, srv)

	Submit(c, Command[struct{}]{Lines: []string{"slow"}}, func(struct{}, error) {})
	eventually(t, "slow to reach the server", func() bool { return srv.Count("slow") == 1 })

	errc := make(chan error, 1)
	Submit(c, Command[struct{}]{Lines: []string{"ping"}}, func(_ struct{}, err error) { errc <- err })
	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	_ = c.Close()

	if err := <-errc; !errors.Is(err, cerrors.ErrClosed) && !errors.Is(err, cerrors.ErrNotConnected) {
		t.Errorf("callback error = %v, want ErrClosed", err)
	}

	// Submitting after Close still calls back exactly once.
	after := make(chan error, 1)
	Submit(c, Command[struct{}]{Lines: []string{"ping"}}, func(_ struct{}, err error) { after <- err })
	if err := <-after; !errors.Is(err, cerrors.ErrClosed) {
		t.Errorf("after Close error = %v, want ErrClosed", err)
	}
}

func TestQueueUsesCommandList(t *testing.T) {
	srv := mpdtest.New(t)
	srv.Reply("status", "state: play\nsong: 1\nsongid: 11\n")
	srv.Reply("playlistinfo", "file: a.flac\nTitle: A\nPos: 0\nId: 10\nfile: b.flac\nTitle: B\nPos: 1\nId: 11\n")
	c := connect(t, srv)

	q, err := c.Queue(context.Background())
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if q.Len() != 2 || q.CurrentIndex != 1 {
		t.Fatalf("Queue() = %d tracks at %d, want 2 at 1", q.Len(), q.CurrentIndex)
	}
	if cur := q.Current(); cur == nil || cur.Title != "B" || cur.ID != 11 {
		t.Errorf("Current() = %+v", cur)
	}
	if srv.Count("command_list_ok_begin") != 1 {
		t.Errorf("expected one command list, got %v", srv.Received())
	}
}

func TestCommandLines(t *testing.T) {
	srv := mpdtest.New(t)
	for _, name := range []string{"seekcur", "setvol", "random", "add", "deleteid", "play", "pause", "rm", "search"} {
		srv.Reply(name, "")
	}
	c := connect(t, srv)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{"seekcur", func() error { return c.SeekCurrent(ctx, 90500*time.Millisecond) }, "seekcur 90.500"},
		{"setvol clamps", func() error { return c.SetVolume(ctx, 150) }, "setvol 100"},
		{"random", func() error { return c.SetRandom(ctx, true) }, "random 1"},
		{"add quotes", func() error { return c.Add(ctx, "My Music/song.flac") }, `add "My Music/song.flac"`},
		{"deleteid", func() error { return c.RemoveID(ctx, 7) }, "deleteid 7"},
		{"play resumes", func() error { return c.Play(ctx, -1) }, "play"},
		{"toggle", func() error { return c.TogglePause(ctx) }, "pause"},
		{"rm", func() error { return c.DeletePlaylist(ctx, "road trip") }, `rm "road trip"`},
		{"search", func() error {
			_, err := c.Search(ctx, "", "blue river")
			return err
		}, `search any "blue river"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err != nil {
				t.Fatalf("error = %v", err)
			}
			got := srv.Received()
			if last := lastCommand(got); last != tt.want {
				t.Errorf("sent %q, want %q", last, tt.want)
			}
		})
	}
}

// lastCommand skips idle bookkeeping lines.
func lastCommand(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		switch l := lines[i]; {
		case l == "noidle", len(l) >= 4 && l[:4] == "idle":
		default:
			return l
		}
	}
	return ""
}

func TestAlbumTracksSorted(t *testing.T) {
	srv := mpdtest.New(t)
	srv.Handle("find", func(args []string) (string, error) {
		if len(args) != 1 || args[0] != `((album == "Blue") AND (albumartist == "Joni Mitchell"))` {
			return "", &proto.AckError{Code: proto.AckArg, Message: "unexpected filter " + args[0]}
		}
		return "file: b.flac\nTrack: 2\nfile: a.flac\nTrack: 1\nfile: c.flac\nTrack: 1\nDisc: 2\n", nil
	})
	c := connect(t, srv)

	tracks, err := c.AlbumTracks(context.Background(), core.Album{Name: "Blue", Artist: "Joni Mitchell"})
	if err != nil {
		t.Fatalf("AlbumTracks() error = %v", err)
	}
	var files []string
	for _, tr := range tracks {
		files = append(files, tr.File)
	}
	if diff := cmp.Diff([]string{"a.flac", "b.flac", "c.flac"}, files); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestArtistsGrouped(t *testing.T) {
	srv := mpdtest.New(t)
	srv.Reply("list", "MUSICBRAINZ_ARTISTID: m1\nArtist: beta\nMUSICBRAINZ_ARTISTID: m2\nArtist: Alpha\nArtist: beta\n")
	c := connect(t, srv)

	got, err := c.Artists(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []core.Artist{
		{Name: "Alpha", MBIDs: []string{"m2"}},
		{Name: "beta", MBIDs: []string{"m1", "m2"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Artists() mismatch (-want +got):\n%s", diff)
	}
	if last := lastCommand(srv.Received()); last != "list artist group musicbrainz_artistid" {
		t.Errorf("sent %q", last)
	}
}
