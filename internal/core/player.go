package core

import (
	"context"
	"time"
)

// Player defines the playback controls shared by the CLI and the websocket bridge.
type Player interface {
	// Playback control
	Play(ctx context.Context, pos int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SeekCurrent(ctx context.Context, pos time.Duration) error

	// Volume control
	SetVolume(ctx context.Context, percent int) error

	// State queries
	Status(ctx context.Context) (*Status, error)
	CurrentSong(ctx context.Context) (*Track, error)
}
