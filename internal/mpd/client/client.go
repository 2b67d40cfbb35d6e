// Package client serializes commands from any number of callers onto one
// server connection. A single worker goroutine owns the connection; callers
// submit requests to its FIFO queue and get exactly one callback each.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/event"
	"github.com/tessro/cadence/internal/mpd/conn"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// IdleEvent reports subsystems the server said have changed.
type IdleEvent struct {
	Subsystems []string
}

// Option configures a Client.
type Option func(*conn.Options)

// WithTimeout bounds connecting and every command round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *conn.Options) { o.Timeout = d }
}

// WithSubsystems sets the idle subsystems to watch.
func WithSubsystems(subsystems ...string) Option {
	return func(o *conn.Options) { o.Subsystems = subsystems }
}

// WithDialer replaces the network dialer.
func WithDialer(d conn.Dialer) Option {
	return func(o *conn.Options) { o.Dialer = d }
}

type requestKind int

const (
	kindCommand requestKind = iota
	kindConnect
	kindDisconnect
)

type request struct {
	id      uuid.UUID
	kind    requestKind
	name    string
	lines   []string
	profile core.ServerProfile
	ctx     context.Context

	once     sync.Once
	complete func(*proto.Response, error)
}

func (r *request) finish(resp *proto.Response, err error) {
	r.once.Do(func() { r.complete(resp, err) })
}

// Ticket identifies a submitted request.
type Ticket struct {
	req *request
}

// ID returns the request id used in logs.
func (t *Ticket) ID() uuid.UUID {
	return t.req.id
}

// Client is the command dispatch queue for one server connection.
type Client struct {
	conn *conn.Conn

	mu       sync.Mutex
	queue    []*request
	connects int
	profile  core.ServerProfile
	version  proto.Version
	closed   bool

	wake      chan struct{}
	callbacks *event.Serial
	states    *event.Broadcaster[conn.StateChange]
	idles     *event.Broadcaster[IdleEvent]

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client and starts its worker. The client starts
// disconnected; call Connect.
func New(opts ...Option) *Client {
	c := &Client{
		wake:      make(chan struct{}, 1),
		callbacks: event.NewSerial(),
		states:    event.NewBroadcaster[conn.StateChange](),
		idles:     event.NewBroadcaster[IdleEvent](),
		done:      make(chan struct{}),
	}

	o := conn.Options{OnStateChange: c.onStateChange}
	for _, opt := range opts {
		opt(&o)
	}
	c.conn = conn.New(o)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
	return c
}

// State returns the connection state.
func (c *Client) State() conn.State {
	return c.conn.State()
}

// Version returns the protocol version of the current session.
func (c *Client) Version() proto.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// OnStateChange registers fn for connection state transitions. Listeners
// run in order on a goroutine of their own and may call back into c.
func (c *Client) OnStateChange(fn func(conn.StateChange)) (unregister func()) {
	return c.states.Subscribe(fn)
}

// OnIdle registers fn for server change notifications.
func (c *Client) OnIdle(fn func(IdleEvent)) (unregister func()) {
	return c.idles.Subscribe(fn)
}

// Close disconnects, fails anything still queued and stops the worker.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	<-c.done
	c.callbacks.Close()
	c.states.Close()
	c.idles.Close()
	return nil
}

// onStateChange runs on the worker goroutine.
func (c *Client) onStateChange(sc conn.StateChange) {
	if sc.To == conn.ConnectedActive && sc.From == conn.Connecting {
		c.mu.Lock()
		c.version = c.conn.Version()
		c.mu.Unlock()
	}
	c.states.Publish(sc)
}

// Command describes one request and how to parse its reply.
type Command[T any] struct {
	Lines []string
	Parse func(*proto.Response) (T, error)
}

// Submit queues cmd and arranges for cb to be called exactly once with its
// result. Callbacks run in order on a dedicated goroutine, never on the
// worker. When the client is disconnected the request fails at once with
// ErrNotConnected.
func Submit[T any](c *Client, cmd Command[T], cb func(T, error)) *Ticket {
	req := &request{
		id:    newID(),
		kind:  kindCommand,
		lines: cmd.Lines,
	}
	if len(cmd.Lines) > 0 {
		req.name = commandName(cmd.Lines[0])
	}
	req.complete = func(resp *proto.Response, err error) {
		var v T
		if err == nil && cmd.Parse != nil {
			v, err = cmd.Parse(resp)
		}
		c.deliver(func() { cb(v, err) })
	}
	return c.enqueue(req)
}

func (c *Client) deliver(fn func()) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		// The executor may already be gone; keep the exactly-once promise.
		go fn()
		return
	}
	c.callbacks.Go(fn)
}

func (c *Client) enqueue(req *request) *Ticket {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		req.finish(nil, cerrors.ErrClosed)
		return &Ticket{req: req}
	}
	if req.kind == kindCommand && c.conn.State() == conn.Disconnected && c.connects == 0 {
		c.mu.Unlock()
		req.finish(nil, cerrors.ErrNotConnected)
		return &Ticket{req: req}
	}
	if req.kind == kindConnect {
		c.connects++
	}
	c.queue = append(c.queue, req)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return &Ticket{req: req}
}

// Cancel removes a request that has not started executing. Its callback
// receives ErrCanceled. Requests already sent cannot be cancelled.
func (c *Client) Cancel(t *Ticket) bool {
	if t == nil {
		return false
	}
	c.mu.Lock()
	found := false
	for i, r := range c.queue {
		if r == t.req {
			c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
			if r.kind == kindConnect {
				c.connects--
			}
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		t.req.finish(nil, cerrors.ErrCanceled)
	}
	return found
}

func (c *Client) pop() *request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	req := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return req
}

func (c *Client) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		c.drain(ctx)

		if ctx.Err() == nil && c.conn.CanIdle() && c.pending() == 0 {
			if err := c.conn.StartIdle(); err != nil {
				log.Warn().Err(err).Msg("failed to enter idle")
			}
		}

		select {
		case <-ctx.Done():
			c.conn.Close()
			for req := c.pop(); req != nil; req = c.pop() {
				req.finish(nil, cerrors.ErrClosed)
			}
			return
		case <-c.wake:
		case res := <-c.conn.IdleDone():
			subs, err := c.conn.FinishIdle(res)
			if err != nil {
				continue
			}
			c.publishIdle(subs)
		}
	}
}

func (c *Client) drain(ctx context.Context) {
	for ctx.Err() == nil {
		req := c.pop()
		if req == nil {
			return
		}
		c.execute(req)
	}
}

func (c *Client) execute(req *request) {
	switch req.kind {
	case kindConnect:
		ctx := req.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		err := c.conn.Connect(ctx, req.profile)
		// Commands submitted while this connect was running were queued
		// behind it; from here on the state alone decides.
		c.mu.Lock()
		c.connects--
		c.mu.Unlock()
		req.finish(nil, err)
		return
	case kindDisconnect:
		c.conn.Close()
		req.finish(nil, nil)
		return
	}

	if c.conn.State() == conn.ConnectedIdle {
		subs, err := c.conn.BreakIdle()
		if err != nil {
			req.finish(nil, err)
			return
		}
		c.publishIdle(subs)
	}

	if !c.conn.State().Connected() {
		req.finish(nil, cerrors.ErrNotConnected)
		return
	}

	log.Debug().Str("id", req.id.String()).Str("cmd", req.name).Msg("exec")
	resp, err := c.conn.Exec(req.lines...)
	req.finish(resp, err)
}

func (c *Client) publishIdle(subs []string) {
	if len(subs) == 0 {
		return
	}
	log.Debug().Strs("subsystems", subs).Msg("changed")
	c.idles.Publish(IdleEvent{Subsystems: subs})
}

func commandName(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			return line[:i]
		}
	}
	return line
}

func newID() uuid.UUID {
	return uuid.New()
}
