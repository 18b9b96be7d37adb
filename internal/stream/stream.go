// Package stream copies byte streams to clients in bounded, optionally
// throttled chunks.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrClientDisconnected is wrapped by errors from writes that fail because the
// receiving client has gone away.
var ErrClientDisconnected = errors.New("client disconnected")

// DefaultChunkSize is used when a Copier's ChunkSize is not positive.
const DefaultChunkSize = 64 << 10

// Stats describes the data transferred by a copy.
type Stats struct {
	Chunks int
	Bytes  int64
}

// Copier moves data from a source to a destination one chunk at a time.
//
// Each chunk is read in full before it is written, so the source is never
// asked for more data than the destination has accepted. When the
// destination implements http.Flusher, it is flushed after every chunk.
type Copier struct {
	ChunkSize int
	// Delay is slept after each chunk other than the last. The sleep ends early
	// if the copy's context is done.
	Delay time.Duration
	// OnChunk, when set, is called with the size of each chunk after it has been
	// written.
	OnChunk func(n int)
}

// Copy writes src to dst in chunks of c.ChunkSize bytes until src reports
// io.EOF. Every chunk but the last is exactly c.ChunkSize bytes, so an input of
// n bytes takes ceil(n / c.ChunkSize) writes.
//
// Copy returns ctx.Err() as soon as it notices that ctx is done, and an error
// wrapping ErrClientDisconnected if a write fails. Read errors are returned as
// they are.
func (c Copier) Copy(ctx context.Context, dst io.Writer, src io.Reader) (Stats, error) {
	size := c.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	flusher, _ := dst.(http.Flusher)

	var (
		stats Stats
		buf   = make([]byte, size)
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := io.ReadFull(src, buf)
		last := errors.Is(err, io.ErrUnexpectedEOF)
		switch {
		case errors.Is(err, io.EOF):
			return stats, nil
		case err != nil && !last:
			return stats, err
		}

		if _, err := dst.Write(buf[:n]); err != nil {
			return stats, fmt.Errorf("%w: %v", ErrClientDisconnected, err)
		}
		if flusher != nil {
			flusher.Flush()
		}
		stats.Chunks++
		stats.Bytes += int64(n)
		if c.OnChunk != nil {
			c.OnChunk(n)
		}

		if last {
			return stats, nil
		}
		if err := sleep(ctx, c.Delay); err != nil {
			return stats, err
		}
	}
}

// sleep pauses for d, or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
