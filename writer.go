package drive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/drive/storage"
)

// FileWriter streams one file into an archive. Bytes are appended to the
// content feed as they are written; the entry itself is appended on Close.
//
// A FileWriter holds the archive write lock from creation until Close, so
// every FileWriter must be closed.
type FileWriter struct {
	a     *Archive
	entry Entry
	cw    *contentWriter

	// dst mirrors written bytes into the archive's file provider.
	dst      storage.Storage
	off      int64
	mtimeSet bool

	err    error
	closed bool
}

var _ io.WriteCloser = (*FileWriter)(nil)

// CreateFileWriter starts a file entry named name. AppendDirectory is
// ignored. Without an explicit mtime the entry records the time the writer
// was created.
func (a *Archive) CreateFileWriter(ctx context.Context, name string, opts ...AppendOption) (*FileWriter, error) {
	var cfg appendConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.directory = false
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}

	w := &FileWriter{
		a:        a,
		entry:    a.newEntry(name, &cfg),
		cw:       newContentWriter(a.content, a.blockSize),
		mtimeSet: !cfg.mtime.IsZero(),
	}
	if a.files != nil {
		dst, err := a.files(name)
		if err != nil {
			a.writeSem.Release(1)
			return nil, fmt.Errorf("drive: open %s: %w", name, err)
		}
		w.dst = dst
	}
	return w, nil
}

// Write appends p to the file's content.
func (w *FileWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errWriterClosed
	}
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.cw.Write(p)
	if err != nil {
		w.err = err
		return n, err
	}
	if w.dst != nil {
		if _, err := w.dst.WriteAt(p, w.off); err != nil {
			w.err = fmt.Errorf("drive: mirror %s: %w", w.entry.Name, err)
			return n, w.err
		}
		w.off += int64(n)
	}
	return n, nil
}

// Close flushes the last block, appends the entry and releases the archive
// write lock. If a Write failed the entry is not appended and that error is
// returned.
func (w *FileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.a.writeSem.Release(1)

	err := w.err
	if err == nil {
		err = w.commit()
	}
	if w.dst != nil {
		if w.mtimeSet && err == nil {
			if t, ok := w.dst.(storage.Timer); ok {
				err = t.SetModTime(w.entry.Mtime)
			}
		}
		err = errors.Join(err, w.dst.Close())
	}
	return err
}

func (w *FileWriter) commit() error {
	content, err := w.cw.finish()
	if err != nil {
		return fmt.Errorf("drive: write %s: %w", w.entry.Name, err)
	}
	w.entry.Content = &content
	return w.a.appendEntry(w.entry)
}
