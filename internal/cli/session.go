package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/client"
	"github.com/tessro/cadence/internal/profile"
)

// providers returns the read-only profile sources: [[profiles]] from the
// config file first, then the profile database if it exists.
func providers() (profile.Chain, func(), error) {
	chain := profile.Chain{profile.Static(cfg.Profiles)}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return chain, func() {}, nil
	}
	store, err := profile.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return append(chain, store), func() { _ = store.Close() }, nil
}

// resolveProfile picks the server to talk to. In order: --host, a named
// profile (--profile or [mpd] profile), MPD_HOST, an auto-connect profile,
// and finally the [mpd] section.
func resolveProfile(ctx context.Context) (core.ServerProfile, error) {
	p, err := baseProfile(ctx)
	if err != nil {
		return p, err
	}
	if portNumber != 0 {
		p.Port = portNumber
	}
	if passwd != "" {
		p.Password = passwd
	}
	return p, nil
}

func baseProfile(ctx context.Context) (core.ServerProfile, error) {
	if hostName != "" {
		return core.ServerProfile{Name: hostName, Host: hostName, Port: cfg.MPD.Port}, nil
	}

	name := profileName
	if name == "" {
		name = cfg.MPD.Profile
	}
	if name == "" && os.Getenv("MPD_HOST") != "" {
		return cfg.MPD.ServerProfile(), nil
	}

	chain, done, err := providers()
	if err != nil {
		return core.ServerProfile{}, err
	}
	defer done()

	if name != "" {
		p, err := chain.Get(ctx, name)
		if err != nil {
			return p, fmt.Errorf("profile %q: %w", name, err)
		}
		return p, nil
	}

	p, err := chain.AutoConnect(ctx)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, profile.ErrNotFound):
		return cfg.MPD.ServerProfile(), nil
	default:
		return p, err
	}
}

// dial connects a new client to the resolved server.
func dial(ctx context.Context) (*client.Client, error) {
	p, err := resolveProfile(ctx)
	if err != nil {
		return nil, err
	}

	subs := subsystems.Values()
	if len(subs) == 0 {
		subs = cfg.MPD.Subsystems
	}
	c := client.New(
		client.WithTimeout(cfg.MPD.TimeoutDuration()),
		client.WithSubsystems(subs...),
	)
	log.Debug().Str("profile", p.Name).Str("addr", p.Address()).Msg("connecting")
	if err := c.ConnectTo(ctx, p); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to %s: %w", p.Address(), err)
	}
	return c, nil
}

// withClient runs fn against a connected client and closes it afterwards.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(ctx, c)
}
