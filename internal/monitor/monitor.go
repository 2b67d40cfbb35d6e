// Package monitor keeps a live view of the player. It resynchronizes from
// the server on a timer and whenever the server reports a change, and
// interpolates elapsed time between resyncs while playing.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/event"
	"github.com/tessro/cadence/internal/mpd/client"
	"github.com/tessro/cadence/internal/mpd/conn"
)

const (
	DefaultResyncInterval = 30 * time.Second
	DefaultTickInterval   = time.Second
)

// Source is the part of the command client the monitor needs.
type Source interface {
	State() conn.State
	Status(ctx context.Context) (*core.Status, error)
	CurrentSong(ctx context.Context) (*core.Track, error)
	OnStateChange(fn func(conn.StateChange)) (unregister func())
	OnIdle(fn func(client.IdleEvent)) (unregister func())
}

// Options configures a Monitor.
type Options struct {
	ResyncInterval time.Duration
	TickInterval   time.Duration
}

// Monitor publishes status and track-change events.
type Monitor struct {
	src  Source
	opts Options

	// mu guards the fields below. They are written only by the Run loop.
	mu      sync.Mutex
	synced  *Snapshot
	live    *Snapshot
	syncAt  time.Time
	running bool

	listeners *event.Broadcaster[Event]
	kick      chan struct{}
	lost      chan struct{}
}

// New creates a monitor for src. Call Run to start it.
func New(src Source, opts Options) *Monitor {
	if opts.ResyncInterval <= 0 {
		opts.ResyncInterval = DefaultResyncInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Monitor{
		src:       src,
		opts:      opts,
		listeners: event.NewBroadcaster[Event](),
		kick:      make(chan struct{}, 1),
		lost:      make(chan struct{}, 1),
	}
}

// Subscribe registers fn for events and returns a function that removes it.
func (m *Monitor) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.listeners.Subscribe(fn)
}

// Status returns the most recent status, interpolated while playing.
func (m *Monitor) Status() core.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		return core.Status{Volume: -1}
	}
	return m.live.Status
}

// Track returns the current song, or nil.
func (m *Monitor) Track() *core.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		return nil
	}
	return m.live.Track
}

// Resync asks the monitor to refresh from the server now.
func (m *Monitor) Resync() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Run drives the monitor until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	m.running = true
	m.mu.Unlock()
	defer m.listeners.Close()

	unState := m.src.OnStateChange(func(sc conn.StateChange) {
		switch {
		case sc.To == conn.ConnectedActive && sc.From == conn.Connecting:
			m.Resync()
		case sc.To == conn.Disconnected:
			select {
			case m.lost <- struct{}{}:
			default:
			}
		}
	})
	defer unState()
	unIdle := m.src.OnIdle(func(ev client.IdleEvent) {
		if relevant(ev.Subsystems) {
			m.Resync()
		}
	})
	defer unIdle()

	resync := time.NewTimer(m.opts.ResyncInterval)
	defer resync.Stop()
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	if m.src.State().Connected() {
		m.Resync()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-m.kick:
			m.resync(ctx, resync)
			stopTicker()
		case <-resync.C:
			m.resync(ctx, resync)
			stopTicker()

		case <-tick:
			m.interpolate()

		case <-m.lost:
			if m.src.State().Connected() {
				continue
			}
			resync.Stop()
			stopTicker()
			m.disconnected()
			continue
		}

		// Interpolation runs only while playing. A resync stops the ticker
		// so it starts a fresh period here.
		if m.playing() {
			if ticker == nil {
				ticker = time.NewTicker(m.opts.TickInterval)
				tick = ticker.C
			}
		} else {
			stopTicker()
		}
	}
}

func relevant(subsystems []string) bool {
	for _, s := range subsystems {
		switch s {
		case "player", "mixer", "options", "playlist", "output":
			return true
		}
	}
	return false
}

func (m *Monitor) playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced != nil && m.synced.Status.IsPlaying()
}

// resync reads status, and the current song when it may have changed,
// then publishes the result and any derived events.
func (m *Monitor) resync(ctx context.Context, timer *time.Timer) {
	timer.Reset(m.opts.ResyncInterval)
	if !m.src.State().Connected() {
		return
	}

	st, err := m.src.Status(ctx)
	if err != nil {
		m.logFailure("status", err)
		return
	}

	m.mu.Lock()
	prevSynced, prevLive := m.synced, m.live
	m.mu.Unlock()

	var track *core.Track
	if prevSynced != nil && !songChanged(&prevSynced.Status, st) {
		track = prevSynced.Track
	} else if st.HasSong() || st.PlaylistLength > 0 {
		track, err = m.src.CurrentSong(ctx)
		if err != nil {
			m.logFailure("currentsong", err)
			return
		}
	}

	now := time.Now()
	snap := &Snapshot{Status: *st, Track: track}
	m.mu.Lock()
	m.synced, m.live, m.syncAt = snap, snap, now
	m.mu.Unlock()

	m.listeners.Publish(Event{Type: EventStatus, Timestamp: now, Previous: prevLive, Current: snap})
	for _, e := range diffStates(prevLive, snap, now) {
		m.listeners.Publish(e)
	}
}

func songChanged(prev, curr *core.Status) bool {
	return prev.Song != curr.Song ||
		prev.SongID != curr.SongID ||
		prev.PlaylistVersion != curr.PlaylistVersion ||
		prev.State == core.StateStopped && curr.State != core.StateStopped
}

func (m *Monitor) logFailure(cmd string, err error) {
	if errors.Is(err, cerrors.ErrNotConnected) || errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("cmd", cmd).Msg("resync skipped")
		return
	}
	log.Warn().Err(err).Str("cmd", cmd).Msg("resync failed")
}

// interpolate publishes a synthetic status advanced by the wall-clock
// time since the last resync.
func (m *Monitor) interpolate() {
	m.mu.Lock()
	if m.synced == nil || !m.synced.Status.IsPlaying() {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	snap := &Snapshot{
		Status: m.synced.Status.Advance(now.Sub(m.syncAt)),
		Track:  m.synced.Track,
	}
	prev := m.live
	m.live = snap
	m.mu.Unlock()

	m.listeners.Publish(Event{Type: EventStatus, Timestamp: now, Previous: prev, Current: snap})
}

func (m *Monitor) disconnected() {
	m.mu.Lock()
	prev := m.live
	if m.live != nil {
		// Freeze at the last authoritative values.
		m.live = m.synced
	}
	m.synced = nil
	m.mu.Unlock()

	log.Debug().Msg("monitor paused until reconnect")
	m.listeners.Publish(Event{Type: EventDisconnected, Timestamp: time.Now(), Previous: prev})
}
