// Package archive locates directories and turns them into ZIP byte streams.
//
// A Producer starts one archive per call. The returned stream owns whatever
// resource backs it, an external process or an in-memory buffer, and releases
// it when closed. Streams are read once from start to finish; they cannot be
// rewound or restarted.
package archive

import (
	"context"
	"errors"
	"io"
)

// ErrArchive is wrapped by errors that occur while building an archive, such
// as a file that disappears or becomes unreadable partway through.
var ErrArchive = errors.New("archive creation failed")

// Producer produces ZIP archives of directories.
//
// Produce starts an archive of dir. Reading the returned stream yields the
// archive bytes in order, and io.EOF once the archive is complete. Closing
// the stream releases its resources; Close is safe to call more than once and
// at any point, including before the stream is fully read.
//
// Cancelling ctx abandons the archive. Reads in progress or made afterward
// fail promptly.
type Producer interface {
	Produce(ctx context.Context, dir string) (io.ReadCloser, error)
}
