// Package bridge exposes player events and commands over a websocket.
//
// Every frame is a JSON object. Clients send
//
//	{"id": "1", "cmd": "volume", "args": {"value": 40}}
//
// and receive {"type": "result", "id": "1", "ok": true, "data": ...}.
// Monitor events arrive unprompted as {"type": "event", "event": ...}.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/monitor"
)

// Controller is the command surface the bridge drives.
type Controller interface {
	core.Player
	TogglePause(ctx context.Context) error
	SetRandom(ctx context.Context, on bool) error
	SetRepeat(ctx context.Context, on bool) error
	SetSingle(ctx context.Context, on bool) error
	SetConsume(ctx context.Context, on bool) error
	Queue(ctx context.Context) (*core.Queue, error)
	Add(ctx context.Context, uri string) error
	Clear(ctx context.Context) error
	Outputs(ctx context.Context) ([]core.Output, error)
	EnableOutput(ctx context.Context, id int) error
	DisableOutput(ctx context.Context, id int) error
}

// Events is the event source, normally a *monitor.Monitor.
type Events interface {
	Subscribe(fn func(monitor.Event)) (unsubscribe func())
	Status() core.Status
	Track() *core.Track
}

// Request is a command frame from a client.
type Request struct {
	ID   string          `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Message is a frame sent to clients.
type Message struct {
	Type  string         `json:"type"`
	ID    string         `json:"id,omitempty"`
	OK    bool           `json:"ok,omitempty"`
	Error string         `json:"error,omitempty"`
	Data  any            `json:"data,omitempty"`
	Event *monitor.Event `json:"event,omitempty"`
}

// Server serves the websocket endpoint.
type Server struct {
	ctl     Controller
	events  Events
	origins []string
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithOrigins allows cross-origin connections from the given host patterns.
func WithOrigins(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// New creates a bridge.
func New(ctl Controller, events Events, opts ...Option) *Server {
	s := &Server{ctl: ctl, events: events, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler, mounted at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// outbox bounds frames queued for a slow client; events beyond it are dropped.
const outbox = 64

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	id := uuid.NewString()
	log.Info().Str("id", id).Str("remote", r.RemoteAddr).Msg("client connected")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan Message, outbox)
	unsubscribe := s.events.Subscribe(func(e monitor.Event) {
		select {
		case out <- Message{Type: "event", Event: &e}:
		default:
			log.Debug().Str("id", id).Stringer("event", e.Type).Msg("dropped event for slow client")
		}
	})
	defer unsubscribe()

	out <- Message{Type: "snapshot", Data: monitor.Snapshot{Status: s.events.Status(), Track: s.events.Track()}}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-out:
				if err := wsjson.Write(ctx, conn, m); err != nil {
					log.Debug().Err(err).Str("id", id).Msg("websocket write failed")
					return
				}
			}
		}
	}()

	for {
		var req Request
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("id", id).Msg("websocket read failed")
			}
			log.Info().Str("id", id).Msg("client disconnected")
			return
		}
		log.Debug().Str("id", id).Str("cmd", req.Cmd).Msg("request")

		reply := s.handle(ctx, req)
		select {
		case out <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) Message {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.dispatch(ctx, req)
	if err != nil {
		msg := err.Error()
		if hint := cerrors.GetSuggestion(err); hint != "" {
			msg += " (" + hint + ")"
		}
		return Message{Type: "result", ID: req.ID, Error: msg}
	}
	return Message{Type: "result", ID: req.ID, OK: true, Data: data}
}

type args struct {
	Pos     *int     `json:"pos"`
	Seconds *float64 `json:"seconds"`
	Value   *int     `json:"value"`
	On      *bool    `json:"on"`
	ID      *int     `json:"id"`
	URI     string   `json:"uri"`
}

func (s *Server) dispatch(ctx context.Context, req Request) (any, error) {
	var a args
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return nil, fmt.Errorf("invalid args: %w", err)
		}
	}

	switch req.Cmd {
	case "status":
		return s.ctl.Status(ctx)
	case "currentsong":
		return s.ctl.CurrentSong(ctx)
	case "queue":
		return s.ctl.Queue(ctx)
	case "outputs":
		return s.ctl.Outputs(ctx)

	case "play":
		pos := -1
		if a.Pos != nil {
			pos = *a.Pos
		}
		return nil, s.ctl.Play(ctx, pos)
	case "pause":
		return nil, s.ctl.Pause(ctx)
	case "resume":
		return nil, s.ctl.Resume(ctx)
	case "toggle":
		return nil, s.ctl.TogglePause(ctx)
	case "stop":
		return nil, s.ctl.Stop(ctx)
	case "next":
		return nil, s.ctl.Next(ctx)
	case "previous", "prev":
		return nil, s.ctl.Previous(ctx)
	case "seek":
		if a.Seconds == nil {
			return nil, errors.New("seek requires seconds")
		}
		return nil, s.ctl.SeekCurrent(ctx, time.Duration(*a.Seconds*float64(time.Second)))
	case "volume":
		if a.Value == nil {
			return nil, errors.New("volume requires value")
		}
		return nil, s.ctl.SetVolume(ctx, *a.Value)

	case "random", "repeat", "single", "consume":
		if a.On == nil {
			return nil, fmt.Errorf("%s requires on", req.Cmd)
		}
		set := map[string]func(context.Context, bool) error{
			"random":  s.ctl.SetRandom,
			"repeat":  s.ctl.SetRepeat,
			"single":  s.ctl.SetSingle,
			"consume": s.ctl.SetConsume,
		}[req.Cmd]
		return nil, set(ctx, *a.On)

	case "add":
		if a.URI == "" {
			return nil, errors.New("add requires uri")
		}
		return nil, s.ctl.Add(ctx, a.URI)
	case "clear":
		return nil, s.ctl.Clear(ctx)
	case "enableoutput", "disableoutput":
		if a.ID == nil {
			return nil, fmt.Errorf("%s requires id", req.Cmd)
		}
		if req.Cmd == "enableoutput" {
			return nil, s.ctl.EnableOutput(ctx, *a.ID)
		}
		return nil, s.ctl.DisableOutput(ctx, *a.ID)
	}
	return nil, fmt.Errorf("unknown command %q", req.Cmd)
}
