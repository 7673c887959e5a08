package drive

import (
	"bytes"
	"context"
	"io"
	"io/fs"
)

// FileReader reads one file's content block by block, fetching missing
// blocks from peers.
type FileReader struct {
	a     *Archive
	ctx   context.Context
	entry Entry

	next uint64
	end  uint64
	buf  []byte
}

var _ io.ReadCloser = (*FileReader)(nil)

// Open returns a reader for e's content. Reads block until peers supply
// missing blocks or ctx ends. Directories cannot be opened.
func (a *Archive) Open(ctx context.Context, e Entry) (*FileReader, error) {
	if e.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: e.Name, Err: fs.ErrInvalid}
	}
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	r := &FileReader{a: a, ctx: ctx, entry: e}
	if e.Content != nil {
		r.next = e.Content.BlockOffset
		r.end = e.Content.BlockEnd()
	}
	return r, nil
}

// ReadFile returns the content of the most recent entry named name.
func (a *Archive) ReadFile(ctx context.Context, name string, opts ...GetOption) ([]byte, error) {
	e, err := a.Get(ctx, name, opts...)
	if err != nil {
		return nil, err
	}
	r, err := a.Open(ctx, e)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	buf.Grow(int(e.Size()))
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Entry returns the entry being read.
func (r *FileReader) Entry() Entry {
	return r.entry
}

// Read implements io.Reader.
func (r *FileReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.next >= r.end {
			return 0, io.EOF
		}
		block, err := r.a.contentFeed().Get(r.ctx, r.next)
		if err != nil {
			return 0, mapError(err)
		}
		r.next++
		r.buf = block
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Close releases the reader. Further reads return io.EOF.
func (r *FileReader) Close() error {
	r.buf = nil
	r.next = r.end
	return nil
}
