package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/mpd/parse"
	"github.com/tessro/cadence/internal/mpd/proto"
)

// ErrNoArtwork is returned when neither embedded pictures nor cover files
// exist for a song.
var ErrNoArtwork = errors.New("no artwork")

// Artwork is an image fetched from the server.
type Artwork struct {
	Data []byte
	// Type is the MIME type when the server reports one (readpicture only).
	Type string
}

type chunk struct {
	parse.Chunk
	data []byte
}

// AlbumArtwork fetches the picture for the song at uri. It tries the
// embedded picture first and falls back to a cover file in the song's
// directory. Each chunk is a separate queued request, so other commands
// may run between chunks.
func (c *Client) AlbumArtwork(ctx context.Context, uri string) (*Artwork, error) {
	if !c.State().Connected() {
		return nil, cerrors.ErrNotConnected
	}
	v := c.Version()
	if v.AtLeast(0, 22, 0) {
		art, err := c.fetchPicture(ctx, "readpicture", uri)
		switch {
		case err == nil:
			return art, nil
		case !fallback(err):
			return nil, err
		}
		log.Debug().Err(err).Str("uri", uri).Msg("readpicture failed, trying albumart")
	}
	if !v.AtLeast(0, 21, 0) {
		return nil, fmt.Errorf("%w: server %s has no artwork commands", ErrNoArtwork, v)
	}
	return c.fetchPicture(ctx, "albumart", uri)
}

// fallback reports whether a readpicture failure should be retried with
// albumart.
func fallback(err error) bool {
	var ack *proto.AckError
	return errors.Is(err, ErrNoArtwork) ||
		errors.Is(err, cerrors.ErrCommandNotAllowed) ||
		errors.As(err, &ack) && (ack.Code == proto.AckNoExist || ack.Code == proto.AckUnknown)
}

func (c *Client) fetchPicture(ctx context.Context, name, uri string) (*Artwork, error) {
	var (
		data  []byte
		mime  string
		total = -1
	)
	for total < 0 || len(data) < total {
		ch, err := Call(ctx, c, Command[chunk]{
			Lines: []string{proto.Command(name, uri, proto.Itoa(len(data)))},
			Parse: func(r *proto.Response) (chunk, error) {
				return chunk{Chunk: parse.PictureChunk(r.Pairs()), data: r.Binary}, nil
			},
		})
		if err != nil {
			return nil, err
		}
		if ch.Size == 0 || len(ch.data) == 0 {
			if total < 0 {
				return nil, ErrNoArtwork
			}
			return nil, fmt.Errorf("%s %s: transfer stopped at %d of %d bytes", name, uri, len(data), total)
		}
		if total < 0 {
			if ch.Size > proto.MaxBinary {
				return nil, fmt.Errorf("%s %s: %w: %d bytes", name, uri, proto.ErrBinaryTooLarge, ch.Size)
			}
			total = ch.Size
			data = make([]byte, 0, total)
		}
		if ch.Type != "" {
			mime = ch.Type
		}
		data = append(data, ch.data...)
	}
	return &Artwork{Data: data[:total], Type: mime}, nil
}
