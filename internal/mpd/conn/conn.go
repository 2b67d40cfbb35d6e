// Package conn owns the socket to one server and its idle state machine.
// A Conn is driven by a single goroutine; only State may be read from
// elsewhere.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/mpd/parse"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// DefaultTimeout bounds connecting and every command round trip.
const DefaultTimeout = 10 * time.Second

// DefaultSubsystems are the idle subsystems watched when none are configured.
var DefaultSubsystems = []string{
	"database", "update", "stored_playlist", "playlist",
	"player", "mixer", "output", "options",
}

var errIdling = errors.New("command issued while idling")

// ErrIdleUnavailable is returned by StartIdle when the server does not let
// this session idle. Callers fall back to polling.
var ErrIdleUnavailable = errors.New("idle not available")

// Dialer opens the transport connection.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Conn.
type Options struct {
	Timeout    time.Duration
	Subsystems []string
	Dialer     Dialer

	// OnStateChange is called synchronously, on the driving goroutine, for
	// every transition.
	OnStateChange func(StateChange)
}

// Conn is one protocol session.
type Conn struct {
	opts Options

	nc       net.Conn
	codec    *proto.Codec
	state    atomic.Int32
	version  proto.Version
	commands map[string]struct{}
	profile  core.ServerProfile
	idleCh   chan IdleResult
	noIdle   bool
}

// New returns a disconnected Conn.
func New(opts Options) *Conn {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if len(opts.Subsystems) == 0 {
		opts.Subsystems = DefaultSubsystems
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{Timeout: opts.Timeout}
	}
	return &Conn{opts: opts}
}

// State returns the current state. Safe to call from any goroutine.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Version returns the protocol version from the greeting.
func (c *Conn) Version() proto.Version {
	return c.version
}

// Profile returns the profile of the current session.
func (c *Conn) Profile() core.ServerProfile {
	return c.profile
}

// Allowed reports whether the server permits name for this client. Before
// the command list is known every command is allowed.
func (c *Conn) Allowed(name string) bool {
	if len(c.commands) == 0 {
		return true
	}
	_, ok := c.commands[name]
	return ok
}

func (c *Conn) setState(to State, err error) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	log.Debug().Stringer("from", from).Stringer("to", to).Err(err).Msg("connection state")
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(StateChange{From: from, To: to, Err: err})
	}
}

// Connect opens a session: greeting, optional password, and the command
// whitelist. Failures leave the Conn disconnected and are never retried.
func (c *Conn) Connect(ctx context.Context, profile core.ServerProfile) error {
	if c.State() != Disconnected {
		c.Close()
	}
	c.profile = profile
	c.commands = nil
	c.noIdle = false
	c.version = proto.Version{}
	c.setState(Connecting, nil)

	err := c.handshake(ctx)
	if err != nil {
		c.teardown()
		c.setState(Disconnected, err)
		return err
	}

	log.Info().Str("addr", profile.Address()).Stringer("version", c.version).Msg("connected")
	c.setState(ConnectedActive, nil)
	return nil
}

func (c *Conn) handshake(ctx context.Context) error {
	network, addr := "tcp", c.profile.Address()
	if strings.HasPrefix(c.profile.Host, "/") {
		network, addr = "unix", c.profile.Host
	}

	dctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	nc, err := c.opts.Dialer.DialContext(dctx, network, addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, classify(err, cerrors.ErrConnectionRefused))
	}
	c.nc = nc
	c.codec = proto.NewCodec(nc)

	if err := nc.SetDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return err
	}

	greeting, err := c.codec.ReadLine()
	if err != nil {
		return fmt.Errorf("read greeting: %w", classify(err, nil))
	}
	c.version, err = proto.ParseGreeting(greeting)
	if err != nil {
		return err
	}

	if c.profile.Password != "" {
		if _, err := c.roundTrip([]string{proto.Command("password", c.profile.Password)}, false); err != nil {
			var ack *proto.AckError
			if errors.As(err, &ack) {
				return fmt.Errorf("%w: %w", cerrors.ErrAuthFailed, err)
			}
			return fmt.Errorf("password: %w", classify(err, nil))
		}
	}

	resp, err := c.roundTrip([]string{"commands"}, false)
	if err != nil {
		var ack *proto.AckError
		if !errors.As(err, &ack) {
			return fmt.Errorf("commands: %w", classify(err, nil))
		}
		// Some proxies reject "commands"; fall back to allowing everything.
		log.Warn().Err(err).Msg("server rejected commands query")
	} else {
		c.commands = parse.Commands(resp.Pairs())
	}
	return nil
}

func (c *Conn) roundTrip(lines []string, list bool) (*proto.Response, error) {
	if err := c.codec.SendCommands(lines); err != nil {
		return nil, err
	}
	return c.codec.ReadResponse(list)
}

// Exec sends one command, or a command list when more than one line is
// given, and reads its reply. An *proto.AckError leaves the session usable;
// any other error disconnects.
func (c *Conn) Exec(lines ...string) (*proto.Response, error) {
	if len(lines) == 0 {
		return &proto.Response{}, nil
	}
	switch c.State() {
	case ConnectedActive:
	case ConnectedIdle, ConnectedNonIdle:
		return nil, errIdling
	default:
		return nil, cerrors.ErrNotConnected
	}

	for _, l := range lines {
		name, _, _ := strings.Cut(l, " ")
		if !c.Allowed(name) {
			return nil, fmt.Errorf("%s: %w", name, cerrors.ErrCommandNotAllowed)
		}
	}

	list := false
	if len(lines) > 1 {
		lines = proto.CommandList(true, lines...)
		list = true
	}

	if err := c.nc.SetDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return nil, c.fail(err)
	}
	resp, err := c.roundTrip(lines, list)
	if err != nil {
		var ack *proto.AckError
		if errors.As(err, &ack) {
			return resp, err
		}
		return nil, c.fail(err)
	}
	return resp, nil
}

// CanIdle reports whether StartIdle would send idle. It is false when the
// server withholds idle from this session, or rejected it earlier.
func (c *Conn) CanIdle() bool {
	return c.State() == ConnectedActive && !c.noIdle && c.Allowed("idle")
}

// StartIdle enters idle mode. The reply is read on a separate goroutine and
// delivered on IdleDone; the socket has no read deadline meanwhile.
func (c *Conn) StartIdle() error {
	if c.State() != ConnectedActive {
		return fmt.Errorf("start idle from %s", c.State())
	}
	if c.noIdle || !c.Allowed("idle") {
		return ErrIdleUnavailable
	}
	if err := c.nc.SetDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return c.fail(err)
	}
	if err := c.codec.SendCommand(proto.Command("idle", c.opts.Subsystems...)); err != nil {
		return c.fail(err)
	}
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		return c.fail(err)
	}

	ch := make(chan IdleResult, 1)
	c.idleCh = ch
	codec := c.codec
	go func() {
		resp, err := codec.ReadResponse(false)
		if err != nil {
			ch <- IdleResult{Err: err}
			return
		}
		ch <- IdleResult{Subsystems: parse.Changed(resp.Pairs())}
	}()

	c.setState(ConnectedIdle, nil)
	return nil
}

// IdleDone delivers the idle reply when the server reports a change on its
// own. It is nil while not idling.
func (c *Conn) IdleDone() <-chan IdleResult {
	if c.State() != ConnectedIdle {
		return nil
	}
	return c.idleCh
}

// BreakIdle leaves idle mode so a command can be sent. It sends noidle and
// waits for the idle reply, returning any subsystems the server reported
// before it saw the noidle.
func (c *Conn) BreakIdle() ([]string, error) {
	if c.State() != ConnectedIdle {
		return nil, nil
	}
	c.setState(ConnectedNonIdle, nil)

	if err := c.nc.SetDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
		return nil, c.fail(err)
	}
	if err := c.codec.SendCommand("noidle"); err != nil {
		return nil, c.fail(err)
	}
	return c.finish(<-c.idleCh)
}

// FinishIdle completes an idle period that ended with an unsolicited reply
// received from IdleDone.
func (c *Conn) FinishIdle(res IdleResult) ([]string, error) {
	if c.State() != ConnectedIdle {
		return nil, nil
	}
	c.setState(ConnectedNonIdle, nil)
	return c.finish(res)
}

// finish leaves idle. An ACK to idle keeps the session and turns idling
// off until the next Connect.
func (c *Conn) finish(res IdleResult) ([]string, error) {
	c.idleCh = nil
	var ack *proto.AckError
	if errors.As(res.Err, &ack) {
		log.Warn().Err(res.Err).Msg("server rejected idle, falling back to polling")
		c.noIdle = true
		c.setState(ConnectedActive, nil)
		return nil, nil
	}
	if res.Err != nil {
		return nil, c.fail(res.Err)
	}
	c.setState(ConnectedActive, nil)
	return res.Subsystems, nil
}

// Close ends the session. It is safe to call in any state.
func (c *Conn) Close() {
	if c.State() == Disconnected {
		return
	}
	c.teardown()
	c.setState(Disconnected, nil)
}

// fail tears the session down after a transport error and returns the
// error to report to the caller.
func (c *Conn) fail(err error) error {
	err = classify(err, nil)
	log.Warn().Err(err).Msg("connection lost")
	c.teardown()
	c.setState(Disconnected, err)
	return fmt.Errorf("%w: %w", cerrors.ErrNotConnected, err)
}

func (c *Conn) teardown() {
	if c.nc != nil {
		_ = c.nc.Close()
	}
	// An idle reader, if any, fails on the closed socket and sends into
	// its buffered channel.
	c.nc = nil
	c.codec = nil
	c.idleCh = nil
}

// classify tags err with ErrTimeout for deadline expiries and with
// refused for ECONNREFUSED.
func classify(err error, refused error) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		if errors.Is(err, cerrors.ErrTimeout) {
			return err
		}
		return fmt.Errorf("%w: %w", cerrors.ErrTimeout, err)
	case refused != nil && errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", refused, err)
	}
	return err
}
