package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/parse"
	"github.com/tessro/cadence/internal/mpd/proto"
)

type result[T any] struct {
	v   T
	err error
}

// Call submits cmd and blocks until its callback fires or ctx is done. A
// request still waiting in the queue when ctx ends is cancelled.
func Call[T any](ctx context.Context, c *Client, cmd Command[T]) (T, error) {
	ch := make(chan result[T], 1)
	t := Submit(c, cmd, func(v T, err error) {
		ch <- result[T]{v, err}
	})
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		c.Cancel(t)
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Client) exec(ctx context.Context, lines ...string) error {
	_, err := Call(ctx, c, Command[struct{}]{Lines: lines})
	return err
}

func (c *Client) wait(ctx context.Context, req *request) error {
	ch := make(chan error, 1)
	req.complete = func(_ *proto.Response, err error) {
		c.deliver(func() { ch <- err })
	}
	t := c.enqueue(req)
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.Cancel(t)
		return ctx.Err()
	}
}

// SetServer stores the profile used by Connect.
func (c *Client) SetServer(p core.ServerProfile) {
	c.mu.Lock()
	c.profile = p
	c.mu.Unlock()
}

// Server returns the profile last given to SetServer or ConnectTo.
func (c *Client) Server() core.ServerProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Connect opens a session to the stored profile, replacing any current one.
func (c *Client) Connect(ctx context.Context) error {
	return c.wait(ctx, &request{
		id:      newID(),
		kind:    kindConnect,
		name:    "connect",
		profile: c.Server(),
		ctx:     ctx,
	})
}

// ConnectTo stores p and connects to it.
func (c *Client) ConnectTo(ctx context.Context, p core.ServerProfile) error {
	c.SetServer(p)
	return c.Connect(ctx)
}

// Disconnect closes the session after earlier requests have run.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.wait(ctx, &request{id: newID(), kind: kindDisconnect, name: "disconnect"})
}

// Ping checks the session is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.exec(ctx, "ping")
}

// Playback

// Play starts playback at queue position pos, or resumes where playback
// left off when pos is negative.
func (c *Client) Play(ctx context.Context, pos int) error {
	if pos < 0 {
		return c.exec(ctx, "play")
	}
	return c.exec(ctx, proto.Command("play", proto.Itoa(pos)))
}

// PlayIndex starts playback at queue position pos.
func (c *Client) PlayIndex(ctx context.Context, pos int) error {
	return c.Play(ctx, max(pos, 0))
}

// PlayID starts playback at the song with the given queue id.
func (c *Client) PlayID(ctx context.Context, id int) error {
	return c.exec(ctx, proto.Command("playid", proto.Itoa(id)))
}

func (c *Client) Pause(ctx context.Context) error {
	return c.exec(ctx, "pause 1")
}

func (c *Client) Resume(ctx context.Context) error {
	return c.exec(ctx, "pause 0")
}

// TogglePause pauses when playing and resumes when paused.
func (c *Client) TogglePause(ctx context.Context) error {
	return c.exec(ctx, "pause")
}

func (c *Client) Stop(ctx context.Context) error {
	return c.exec(ctx, "stop")
}

func (c *Client) Next(ctx context.Context) error {
	return c.exec(ctx, "next")
}

func (c *Client) Previous(ctx context.Context) error {
	return c.exec(ctx, "previous")
}

// Seek jumps to offset within the song at queue position pos.
func (c *Client) Seek(ctx context.Context, pos int, offset time.Duration) error {
	return c.exec(ctx, proto.Command("seek", proto.Itoa(pos), secs(offset)))
}

// SeekCurrent jumps to offset within the current song.
func (c *Client) SeekCurrent(ctx context.Context, offset time.Duration) error {
	return c.exec(ctx, proto.Command("seekcur", secs(offset)))
}

// SetVolume sets the mixer volume, clamped to 0..100.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	percent = max(0, min(100, percent))
	return c.exec(ctx, proto.Command("setvol", proto.Itoa(percent)))
}

func (c *Client) SetRandom(ctx context.Context, on bool) error {
	return c.exec(ctx, proto.Command("random", proto.Bool(on)))
}

func (c *Client) SetRepeat(ctx context.Context, on bool) error {
	return c.exec(ctx, proto.Command("repeat", proto.Bool(on)))
}

func (c *Client) SetSingle(ctx context.Context, on bool) error {
	return c.exec(ctx, proto.Command("single", proto.Bool(on)))
}

func (c *Client) SetConsume(ctx context.Context, on bool) error {
	return c.exec(ctx, proto.Command("consume", proto.Bool(on)))
}

// SetCrossfade sets the crossfade between songs.
func (c *Client) SetCrossfade(ctx context.Context, d time.Duration) error {
	return c.exec(ctx, proto.Command("crossfade", proto.Itoa(int(d/time.Second))))
}

// Status and queue

func (c *Client) Status(ctx context.Context) (*core.Status, error) {
	return Call(ctx, c, Command[*core.Status]{
		Lines: []string{"status"},
		Parse: func(r *proto.Response) (*core.Status, error) {
			st := parse.Status(r.Pairs())
			return &st, nil
		},
	})
}

// CurrentSong returns the current song, or nil when the queue has none.
func (c *Client) CurrentSong(ctx context.Context) (*core.Track, error) {
	return Call(ctx, c, Command[*core.Track]{
		Lines: []string{"currentsong"},
		Parse: func(r *proto.Response) (*core.Track, error) {
			return parse.Track(r.Pairs()), nil
		},
	})
}

// Stats returns database and uptime counters.
func (c *Client) Stats(ctx context.Context) (parse.Stats, error) {
	return Call(ctx, c, Command[parse.Stats]{
		Lines: []string{"stats"},
		Parse: func(r *proto.Response) (parse.Stats, error) {
			return parse.ParseStats(r.Pairs()), nil
		},
	})
}

// Queue returns the play queue together with the current position. Both
// come from one command list so they agree with each other.
func (c *Client) Queue(ctx context.Context) (*core.Queue, error) {
	return Call(ctx, c, Command[*core.Queue]{
		Lines: []string{"status", "playlistinfo"},
		Parse: func(r *proto.Response) (*core.Queue, error) {
			if len(r.Segments) < 2 {
				return nil, fmt.Errorf("queue: expected 2 replies, got %d", len(r.Segments))
			}
			st := parse.Status(r.SegmentPairs(0))
			q := &core.Queue{Tracks: parse.Tracks(r.SegmentPairs(1)), CurrentIndex: -1}
			if st.HasSong() {
				q.CurrentIndex = st.Song
			}
			return q, nil
		},
	})
}

// Add appends a song, or a whole directory, to the queue.
func (c *Client) Add(ctx context.Context, uri string) error {
	return c.exec(ctx, proto.Command("add", uri))
}

// AddDirectory appends every song below path, recursively.
func (c *Client) AddDirectory(ctx context.Context, path string) error {
	return c.Add(ctx, path)
}

// AddAll appends several songs in one command list.
func (c *Client) AddAll(ctx context.Context, uris ...string) error {
	if len(uris) == 0 {
		return nil
	}
	lines := make([]string, len(uris))
	for i, u := range uris {
		lines[i] = proto.Command("add", u)
	}
	return c.exec(ctx, lines...)
}

// RemoveIndex removes the song at queue position pos.
func (c *Client) RemoveIndex(ctx context.Context, pos int) error {
	return c.exec(ctx, proto.Command("delete", proto.Itoa(pos)))
}

// RemoveID removes the song with the given queue id.
func (c *Client) RemoveID(ctx context.Context, id int) error {
	return c.exec(ctx, proto.Command("deleteid", proto.Itoa(id)))
}

// Move moves the song at from to position to.
func (c *Client) Move(ctx context.Context, from, to int) error {
	return c.exec(ctx, proto.Command("move", proto.Itoa(from), proto.Itoa(to)))
}

func (c *Client) Clear(ctx context.Context) error {
	return c.exec(ctx, "clear")
}

func (c *Client) Shuffle(ctx context.Context) error {
	return c.exec(ctx, "shuffle")
}

// Stored playlists

// Playlists lists stored playlists.
func (c *Client) Playlists(ctx context.Context) ([]core.Playlist, error) {
	return Call(ctx, c, Command[[]core.Playlist]{
		Lines: []string{"listplaylists"},
		Parse: func(r *proto.Response) ([]core.Playlist, error) {
			return parse.Playlists(r.Pairs()), nil
		},
	})
}

// SavedPlaylist returns the songs of a stored playlist.
func (c *Client) SavedPlaylist(ctx context.Context, name string) ([]core.Track, error) {
	return Call(ctx, c, Command[[]core.Track]{
		Lines: []string{proto.Command("listplaylistinfo", name)},
		Parse: func(r *proto.Response) ([]core.Track, error) {
			return parse.Tracks(r.Pairs()), nil
		},
	})
}

// LoadPlaylist appends a stored playlist to the queue.
func (c *Client) LoadPlaylist(ctx context.Context, name string) error {
	return c.exec(ctx, proto.Command("load", name))
}

// SavePlaylist saves the queue as a stored playlist.
func (c *Client) SavePlaylist(ctx context.Context, name string) error {
	return c.exec(ctx, proto.Command("save", name))
}

func (c *Client) DeletePlaylist(ctx context.Context, name string) error {
	return c.exec(ctx, proto.Command("rm", name))
}

// Outputs

func (c *Client) Outputs(ctx context.Context) ([]core.Output, error) {
	return Call(ctx, c, Command[[]core.Output]{
		Lines: []string{"outputs"},
		Parse: func(r *proto.Response) ([]core.Output, error) {
			return parse.Outputs(r.Pairs()), nil
		},
	})
}

func (c *Client) EnableOutput(ctx context.Context, id int) error {
	return c.exec(ctx, proto.Command("enableoutput", proto.Itoa(id)))
}

func (c *Client) DisableOutput(ctx context.Context, id int) error {
	return c.exec(ctx, proto.Command("disableoutput", proto.Itoa(id)))
}

func (c *Client) ToggleOutput(ctx context.Context, id int) error {
	return c.exec(ctx, proto.Command("toggleoutput", proto.Itoa(id)))
}

// Database

// Files lists one directory of the music database. The empty path is the
// root.
func (c *Client) Files(ctx context.Context, path string) ([]core.Entry, error) {
	line := "lsinfo"
	if path != "" {
		line = proto.Command("lsinfo", path)
	}
	return Call(ctx, c, Command[[]core.Entry]{
		Lines: []string{line},
		Parse: func(r *proto.Response) ([]core.Entry, error) {
			return parse.Entries(r.Pairs()), nil
		},
	})
}

// Update starts a database rescan of path, or everything when path is
// empty, and returns the job id.
func (c *Client) Update(ctx context.Context, path string) (int, error) {
	line := "update"
	if path != "" {
		line = proto.Command("update", path)
	}
	return Call(ctx, c, Command[int]{
		Lines: []string{line},
		Parse: func(r *proto.Response) (int, error) {
			return parse.UpdateJob(r.Pairs()), nil
		},
	})
}

func secs(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
