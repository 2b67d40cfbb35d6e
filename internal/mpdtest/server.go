// Package mpdtest runs a scripted protocol server on a loopback port for
// tests. It tracks idle state per session and records any command other
// than noidle that a client sends while idling.
package mpdtest

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// Handler answers one command. The returned body is written before the
// final OK and may contain binary data. Returning an *proto.AckError sends
// that ACK; any other error is reported as an unknown-command ACK.
type Handler func(args []string) (string, error)

// Server is a fake protocol server.
type Server struct {
	t  testing.TB
	ln net.Listener

	mu         sync.Mutex
	version    string
	password   string
	handlers   map[string]Handler
	allowed    []string
	idleAck    *proto.AckError
	received   []string
	violations []string
	sessions   map[*session]struct{}
	closed     bool

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version sent in the greeting.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithPassword requires clients to authenticate.
func WithPassword(pw string) Option {
	return func(s *Server) { s.password = pw }
}

// WithAllowed limits the reply to `commands`. By default every registered
// handler is listed.
func WithAllowed(names ...string) Option {
	return func(s *Server) { s.allowed = names }
}

// New starts a server on 127.0.0.1 and closes it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{
		t:        t,
		ln:       ln,
		version:  "0.23.5",
		handlers: make(map[string]Handler),
		sessions: make(map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reply("ping", "")
	s.Reply("status", "volume: 50\nstate: stop\nplaylist: 1\nplaylistlength: 0\n")
	s.Reply("currentsong", "")

	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Profile returns a profile pointing at the server.
func (s *Server) Profile() core.ServerProfile {
	addr := s.ln.Addr().(*net.TCPAddr)
	return core.ServerProfile{
		Name:     "test",
		Host:     addr.IP.String(),
		Port:     addr.Port,
		Password: s.password,
	}
}

// Handle registers h for name.
func (s *Server) Handle(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Reply makes name always answer with body.
func (s *Server) Reply(name, body string) {
	s.Handle(name, func([]string) (string, error) { return body, nil })
}

// Fail makes name always answer with an ACK.
func (s *Server) Fail(name string, code int, msg string) {
	s.Handle(name, func([]string) (string, error) {
		return "", &proto.AckError{Code: code, Command: name, Message: msg}
	})
}

// RejectIdle makes idle answer with an ACK instead of waiting for changes.
func (s *Server) RejectIdle(code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleAck = &proto.AckError{Code: code, Command: "idle", Message: msg}
}

func (s *Server) idleRejection() *proto.AckError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleAck
}

// Notify reports subsystems as changed. Idling sessions are woken at once;
// others see the change on their next idle.
func (s *Server) Notify(subsystems ...string) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	s.mu.Unlock()
	for _, ss := range sessions {
		ss.notify(subsystems)
	}
}

// Received returns every command line received, across sessions, in
// arrival order. Password arguments are kept.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Count returns how many received lines start with the command name.
func (s *Server) Count(name string) int {
	n := 0
	for _, l := range s.Received() {
		if cmd, _, _ := strings.Cut(l, " "); cmd == name {
			n++
		}
	}
	return n
}

// Violations returns commands that arrived while their session was idling.
func (s *Server) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

// Idling reports whether any session is currently in idle.
func (s *Server) Idling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ss := range s.sessions {
		if ss.isIdle() {
			return true
		}
	}
	return false
}

// Sessions returns the number of open client connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Drop closes every client connection without a reply.
func (s *Server) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ss := range s.sessions {
		_ = ss.nc.Close()
	}
}

// Close stops the server and waits for its goroutines.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.ln.Close()
	for ss := range s.sessions {
		_ = ss.nc.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		ss := &session{srv: s, nc: nc, w: bufio.NewWriter(nc)}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = nc.Close()
			return
		}
		s.sessions[ss] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ss.serve()
			s.mu.Lock()
			delete(s.sessions, ss)
			s.mu.Unlock()
		}()
	}
}

func (s *Server) record(line string) {
	s.mu.Lock()
	s.received = append(s.received, line)
	s.mu.Unlock()
}

func (s *Server) violate(line string) {
	s.mu.Lock()
	s.violations = append(s.violations, line)
	s.mu.Unlock()
}

func (s *Server) handler(name string) (Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[name]
	return h, ok
}

func (s *Server) commandList() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.allowed
	if names == nil {
		names = []string{"commands", "password", "idle", "noidle", "close"}
		for name := range s.handlers {
			names = append(names, name)
		}
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, n := range sorted {
		fmt.Fprintf(&b, "command: %s\n", n)
	}
	return b.String()
}

type session struct {
	srv *Server
	nc  net.Conn

	mu      sync.Mutex
	w       *bufio.Writer
	idle    bool
	pending []string
	authed  bool
}

func (ss *session) isIdle() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.idle
}

func (ss *session) write(s string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.writeLocked(s)
}

func (ss *session) writeLocked(s string) {
	_, _ = ss.w.WriteString(s)
	_ = ss.w.Flush()
}

func (ss *session) notify(subsystems []string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.pending = append(ss.pending, subsystems...)
	if ss.idle {
		ss.flushChangesLocked()
	}
}

// flushChangesLocked answers an outstanding idle with the pending changes.
func (ss *session) flushChangesLocked() {
	var b strings.Builder
	for _, sub := range ss.pending {
		fmt.Fprintf(&b, "changed: %s\n", sub)
	}
	b.WriteString("OK\n")
	ss.pending = nil
	ss.idle = false
	ss.writeLocked(b.String())
}

func (ss *session) serve() {
	defer ss.nc.Close()
	ss.write("OK MPD " + ss.srv.version + "\n")

	sc := bufio.NewScanner(ss.nc)
	var (
		list   []string
		inList bool
		listOK bool
	)
	for sc.Scan() {
		line := sc.Text()
		ss.srv.record(line)

		ss.mu.Lock()
		idle := ss.idle
		if idle && line == "noidle" {
			ss.flushChangesLocked()
		}
		ss.mu.Unlock()
		if line == "noidle" {
			continue
		}
		if idle {
			ss.srv.violate(line)
			ss.write("ACK [5@0] {} command while idling\n")
			return
		}

		switch {
		case line == "command_list_begin" || line == "command_list_ok_begin":
			inList, listOK, list = true, line == "command_list_ok_begin", nil
			continue
		case inList && line == "command_list_end":
			inList = false
			ss.runList(list, listOK)
			continue
		case inList:
			list = append(list, line)
			continue
		}

		if !ss.run(line) {
			return
		}
	}
}

func (ss *session) runList(lines []string, ok bool) {
	var b strings.Builder
	for i, line := range lines {
		body, err := ss.exec(line)
		if err != nil {
			b.WriteString(ackLine(err, i, line))
			ss.write(b.String())
			return
		}
		b.WriteString(body)
		if ok {
			b.WriteString("list_OK\n")
		}
	}
	b.WriteString("OK\n")
	ss.write(b.String())
}

// run executes one line outside a command list. It returns false when the
// session should end.
func (ss *session) run(line string) bool {
	args, err := proto.Tokenize(line)
	if err != nil || len(args) == 0 {
		ss.write(ackLine(&proto.AckError{Code: proto.AckArg, Message: "bad line"}, 0, line))
		return true
	}
	switch args[0] {
	case "close":
		return false
	case "idle":
		if ack := ss.srv.idleRejection(); ack != nil {
			ss.write(ackLine(ack, 0, line))
			return true
		}
		ss.mu.Lock()
		ss.idle = true
		if len(ss.pending) > 0 {
			ss.flushChangesLocked()
		}
		ss.mu.Unlock()
		return true
	}

	body, err := ss.exec(line)
	if err != nil {
		ss.write(ackLine(err, 0, line))
		return true
	}
	ss.write(body + "OK\n")
	return true
}

func (ss *session) exec(line string) (string, error) {
	args, err := proto.Tokenize(line)
	if err != nil || len(args) == 0 {
		return "", &proto.AckError{Code: proto.AckArg, Message: "bad line"}
	}
	name := args[0]

	switch name {
	case "password":
		if len(args) != 2 || args[1] != ss.srv.password {
			return "", &proto.AckError{Code: proto.AckPassword, Command: name, Message: "incorrect password"}
		}
		ss.authed = true
		return "", nil
	case "commands":
		return ss.srv.commandList(), nil
	}

	if ss.srv.password != "" && !ss.authed {
		return "", &proto.AckError{Code: proto.AckPermission, Command: name, Message: "you don't have permission for \"" + name + "\""}
	}

	h, ok := ss.srv.handler(name)
	if !ok {
		return "", &proto.AckError{Code: proto.AckUnknown, Message: "unknown command \"" + name + "\""}
	}
	body, err := h(args[1:])
	if err != nil {
		var ack *proto.AckError
		if !errors.As(err, &ack) {
			return "", &proto.AckError{Code: proto.AckUnknown, Command: name, Message: err.Error()}
		}
		if ack.Command == "" {
			ack.Command = name
		}
		return "", ack
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, nil
}

func ackLine(err error, index int, line string) string {
	var ack *proto.AckError
	if !errors.As(err, &ack) {
		ack = &proto.AckError{Code: proto.AckUnknown, Message: err.Error()}
	}
	cmd := ack.Command
	if cmd == "" {
		cmd, _, _ = strings.Cut(line, " ")
	}
	return "ACK [" + strconv.Itoa(ack.Code) + "@" + strconv.Itoa(index) + "] {" + cmd + "} " + ack.Message + "\n"
}

// Binary formats a chunked binary reply as sent by albumart and
// readpicture.
func Binary(total int, mime string, chunk []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "size: %d\n", total)
	if mime != "" {
		fmt.Fprintf(&b, "type: %s\n", mime)
	}
	fmt.Fprintf(&b, "binary: %d\n", len(chunk))
	b.Write(chunk)
	b.WriteString("\n")
	return b.String()
}
