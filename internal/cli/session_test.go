package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/config"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpdtest"
	"github.com/tessro/cadence/internal/profile"
)

// setFlags resets the global flags and config for one test.
func setFlags(t *testing.T, c *config.Config) {
	t.Helper()
	prevCfg, prevProfile, prevHost, prevPort, prevPass := cfg, profileName, hostName, portNumber, passwd
	cfg, profileName, hostName, portNumber, passwd = c, "", "", 0, ""
	t.Cleanup(func() {
		cfg, profileName, hostName, portNumber, passwd = prevCfg, prevProfile, prevHost, prevPort, prevPass
	})
	t.Setenv("MPD_HOST", "")
}

func testConfig(t *testing.T) *config.Config {
	c := config.Default()
	c.Store.Path = filepath.Join(t.TempDir(), "profiles.db")
	c.Profiles = []core.ServerProfile{{Name: "office", Host: "10.0.0.9", Port: 6600}}
	return c
}

func seedStore(t *testing.T, path string, profiles ...core.ServerProfile) {
	t.Helper()
	store, err := profile.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	for _, p := range profiles {
		if err := store.Save(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
}

func TestResolveProfile(t *testing.T) {
	ctx := context.Background()
	den := core.ServerProfile{Name: "den", Host: "10.0.0.2", Port: 6600, AutoConnect: true}
	attic := core.ServerProfile{Name: "attic", Host: "10.0.0.3", Port: 6601}

	tests := []struct {
		name    string
		setup   func(t *testing.T, c *config.Config)
		want    core.ServerProfile
		wantErr error
	}{
		{
			name:  "host flag",
			setup: func(*testing.T, *config.Config) { hostName, portNumber = "music.local", 6700 },
			want:  core.ServerProfile{Name: "music.local", Host: "music.local", Port: 6700},
		},
		{
			name:  "static profile by name",
			setup: func(*testing.T, *config.Config) { profileName = "office" },
			want:  core.ServerProfile{Name: "office", Host: "10.0.0.9", Port: 6600},
		},
		{
			name:  "stored profile from config",
			setup: func(_ *testing.T, c *config.Config) { c.MPD.Profile = "attic" },
			want:  attic,
		},
		{
			name:  "auto-connect",
			setup: func(*testing.T, *config.Config) {},
			want:  den,
		},
		{
			name: "password flag",
			setup: func(*testing.T, *config.Config) {
				profileName = "attic"
				passwd = "secret"
			},
			want: core.ServerProfile{Name: "attic", Host: "10.0.0.3", Port: 6601, Password: "secret"},
		},
		{
			name:    "unknown profile",
			setup:   func(*testing.T, *config.Config) { profileName = "garage" },
			wantErr: profile.ErrNotFound,
		},
		{
			name: "MPD_HOST beats auto-connect",
			setup: func(t *testing.T, c *config.Config) {
				t.Setenv("MPD_HOST", "localhost")
				c.MPD.Host = "localhost"
			},
			want: core.ServerProfile{Name: "default", Host: "localhost", Port: 6600},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			seedStore(t, c.Store.Path, den, attic)
			setFlags(t, c)
			tt.setup(t, c)

			got, err := resolveProfile(ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("resolveProfile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveProfileWithoutStore(t *testing.T) {
	c := testConfig(t)
	c.Profiles = nil
	setFlags(t, c)

	got, err := resolveProfile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != c.MPD.ServerProfile() {
		t.Errorf("resolveProfile() = %+v, want the [mpd] section", got)
	}
}

// useServer points the global flags at srv.
func useServer(t *testing.T, srv *mpdtest.Server) {
	t.Helper()
	setFlags(t, testConfig(t))
	p := srv.Profile()
	hostName, portNumber, passwd = p.Host, p.Port, p.Password
}

func TestCommandsAgainstServer(t *testing.T) {
	srv := mpdtest.New(t)
	for _, name := range []string{"add", "random", "setvol", "delete", "move"} {
		srv.Reply(name, "")
	}
	useServer(t, srv)

	tests := []struct {
		name string
		run  func() error
		want []string
	}{
		{
			name: "queue add uses one command list",
			run:  func() error { return runQueueAdd(queueAddCmd, []string{"a.flac", "My Music/b.flac"}) },
			want: []string{"command_list_ok_begin", "add a.flac", `add "My Music/b.flac"`, "command_list_end"},
		},
		{
			name: "random flips the current value",
			run: func() error {
				c := findCommand(t, "random")
				return c.RunE(c, nil)
			},
			want: []string{"status", "random 1"},
		},
		{
			name: "volume up",
			run: func() error {
				volumeUp, volumeStep = true, 5
				defer func() { volumeUp = false }()
				return runVolume(volumeCmd, nil)
			},
			want: []string{"status", "setvol 55"},
		},
		{
			name: "remove by position is 0-based on the wire",
			run:  func() error { return runQueueRemove(queueRemoveCmd, []string{"3"}) },
			want: []string{"delete 2"},
		},
		{
			name: "move",
			run:  func() error { return runQueueMove(queueMoveCmd, []string{"1", "4"}) },
			want: []string{"move 0 3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(srv.Received())
			if err := tt.run(); err != nil {
				t.Fatalf("error = %v", err)
			}
			if diff := cmp.Diff(tt.want, commandsSince(srv, before)); diff != "" {
				t.Errorf("sent (-want +got):\n%s", diff)
			}
		})
	}
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("no %s command", name)
	return nil
}

// commandsSince returns the commands received after index from, without the
// connection handshake and idle bookkeeping.
func commandsSince(srv *mpdtest.Server, from int) []string {
	var out []string
	for _, l := range srv.Received()[from:] {
		switch {
		case l == "noidle", l == "commands", l == "close", len(l) >= 4 && l[:4] == "idle", len(l) >= 8 && l[:8] == "password":
			continue
		}
		out = append(out, l)
	}
	return out
}
