// Package profile looks up saved server connection settings.
package profile

import (
	"context"
	"errors"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = cerrors.ErrProfileNotFound

// Provider reads server profiles.
type Provider interface {
	// Get returns the profile with the given name.
	Get(ctx context.Context, name string) (core.ServerProfile, error)
	// AutoConnect returns the profile marked for automatic connection.
	AutoConnect(ctx context.Context) (core.ServerProfile, error)
}

// Static serves profiles from memory, typically the [[profiles]] entries
// of the config file.
type Static []core.ServerProfile

func (s Static) Get(_ context.Context, name string) (core.ServerProfile, error) {
	for _, p := range s {
		if p.Name == name {
			return p, nil
		}
	}
	return core.ServerProfile{}, ErrNotFound
}

func (s Static) AutoConnect(context.Context) (core.ServerProfile, error) {
	for _, p := range s {
		if p.AutoConnect {
			return p, nil
		}
	}
	return core.ServerProfile{}, ErrNotFound
}

// Chain consults providers in order and returns the first match.
type Chain []Provider

func (c Chain) Get(ctx context.Context, name string) (core.ServerProfile, error) {
	return c.first(func(p Provider) (core.ServerProfile, error) { return p.Get(ctx, name) })
}

func (c Chain) AutoConnect(ctx context.Context) (core.ServerProfile, error) {
	return c.first(func(p Provider) (core.ServerProfile, error) { return p.AutoConnect(ctx) })
}

func (c Chain) first(fn func(Provider) (core.ServerProfile, error)) (core.ServerProfile, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		prof, err := fn(p)
		if err == nil {
			return prof, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return core.ServerProfile{}, err
		}
	}
	return core.ServerProfile{}, ErrNotFound
}
