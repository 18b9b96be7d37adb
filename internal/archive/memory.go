package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

// MemoryProducer produces archives by compressing the whole directory into
// memory before any byte is returned. It needs no external tools, but memory
// use grows with the size of the archive.
type MemoryProducer struct{}

// Produce implements Producer. Regular files are added in lexical path order
// with Deflate compression, named by their slash-separated path relative to
// dir. Directories, symlinks, and other special files are skipped.
func (MemoryProducer) Produce(ctx context.Context, dir string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, newFlateWriter)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err == nil {
		err = zw.Close()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchive, err)
	}
	return &memoryArchive{ctx: ctx, r: bytes.NewReader(buf.Bytes())}, nil
}

func newFlateWriter(w io.Writer) (io.WriteCloser, error) {
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	return fw, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// memoryArchive is a finished archive held in memory.
type memoryArchive struct {
	ctx context.Context
	r   *bytes.Reader // nil once closed
}

func (a *memoryArchive) Read(b []byte) (int, error) {
	if a.r == nil {
		return 0, os.ErrClosed
	}
	if err := a.ctx.Err(); err != nil {
		return 0, err
	}
	return a.r.Read(b)
}

// Close drops the archive so its memory can be reclaimed.
func (a *memoryArchive) Close() error {
	a.r = nil
	return nil
}
