package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/tessro/cadence/internal/monitor"
	"github.com/tessro/cadence/internal/mpd/client"
	"github.com/tessro/cadence/internal/mpdtest"
)

func setup(t *testing.T) (*mpdtest.Server, *websocket.Conn, context.Context) {
	t.Helper()
	srv := mpdtest.New(t)
	srv.Reply("setvol", "")
	srv.Reply("status", "state: play\nsong: 0\nsongid: 1\nvolume: 30\nelapsed: 1.000\nduration: 100.000\n")
	srv.Reply("currentsong", "file: a.flac\nTitle: A\nArtist: B\nId: 1\nPos: 0\n")

	c := client.New(client.WithTimeout(2 * time.Second))
	t.Cleanup(func() { _ = c.Close() })
	if err := c.ConnectTo(context.Background(), srv.Profile()); err != nil {
		t.Fatal(err)
	}

	mon := monitor.New(c, monitor.Options{ResyncInterval: time.Hour, TickInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = mon.Run(ctx) }()

	hs := httptest.NewServer(New(c, mon).Handler())
	t.Cleanup(hs.Close)

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return srv, ws, ctx
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ctx context.Context, ws *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var m map[string]any
		if err := wsjson.Read(ctx, ws, &m); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(m) {
			return m
		}
	}
}

func TestSnapshotFirst(t *testing.T) {
	_, ws, ctx := setup(t)
	var first map[string]any
	if err := wsjson.Read(ctx, ws, &first); err != nil {
		t.Fatal(err)
	}
	if first["type"] != "snapshot" {
		t.Errorf("first frame type = %v, want snapshot", first["type"])
	}
}

func TestCommandResult(t *testing.T) {
	srv, ws, ctx := setup(t)

	req := map[string]any{"id": "7", "cmd": "volume", "args": map[string]any{"value": 30}}
	if err := wsjson.Write(ctx, ws, req); err != nil {
		t.Fatal(err)
	}
	res := readUntil(t, ctx, ws, func(m map[string]any) bool { return m["type"] == "result" })
	if res["id"] != "7" || res["ok"] != true {
		t.Errorf("result = %v", res)
	}
	if srv.Count("setvol") != 1 {
		t.Errorf("setvol not sent: %v", srv.Received())
	}
}

func TestUnknownCommand(t *testing.T) {
	_, ws, ctx := setup(t)
	if err := wsjson.Write(ctx, ws, map[string]any{"id": "x", "cmd": "explode"}); err != nil {
		t.Fatal(err)
	}
	res := readUntil(t, ctx, ws, func(m map[string]any) bool { return m["type"] == "result" })
	if msg, _ := res["error"].(string); !strings.Contains(msg, "unknown command") {
		t.Errorf("error = %q", msg)
	}
}

func TestEventsForwarded(t *testing.T) {
	srv, ws, ctx := setup(t)
	readUntil(t, ctx, ws, func(m map[string]any) bool { return m["type"] == "snapshot" })

	// The subscription exists once the snapshot arrives; any server change
	// now produces a resync and a status event.
	srv.Notify("player")
	ev := readUntil(t, ctx, ws, func(m map[string]any) bool {
		e, ok := m["event"].(map[string]any)
		if !ok || e["type"] != "status" {
			return false
		}
		cur, _ := e["current"].(map[string]any)
		return cur != nil && cur["track"] != nil
	})
	cur := ev["event"].(map[string]any)["current"].(map[string]any)
	track := cur["track"].(map[string]any)
	if track["title"] != "A" {
		t.Errorf("track = %v", track)
	}
}
