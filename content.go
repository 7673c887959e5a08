package drive

import (
	"github.com/meigma/drive/feed"
)

// contentWriter cuts a byte stream into fixed-size blocks and appends them
// to the content feed. The resulting range starts at the feed's length and
// byte length when the writer was created, so the caller must hold the
// archive write lock for the writer's lifetime.
type contentWriter struct {
	feed      *feed.Feed
	blockSize int

	blockOffset uint64
	bytesOffset uint64
	buf         []byte
	blocks      uint64
	written     uint64
}

func newContentWriter(f *feed.Feed, blockSize int) *contentWriter {
	return &contentWriter{
		feed:        f,
		blockSize:   blockSize,
		blockOffset: f.Length(),
		bytesOffset: f.ByteLength(),
		buf:         make([]byte, 0, blockSize),
	}
}

// Write buffers p and appends every full block.
func (w *contentWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		k := min(w.blockSize-len(w.buf), len(p))
		w.buf = append(w.buf, p[:k]...)
		p = p[k:]
		if len(w.buf) == w.blockSize {
			if err := w.flush(); err != nil {
				return n - len(p), err
			}
		}
	}
	return n, nil
}

// flush appends the buffered bytes as one block.
func (w *contentWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	block := make([]byte, len(w.buf))
	copy(block, w.buf)
	if _, err := w.feed.Append(block); err != nil {
		return mapError(err)
	}
	w.blocks++
	w.written += uint64(len(block))
	w.buf = w.buf[:0]
	return nil
}

// finish appends the final short block and returns the range written.
// Empty input appends nothing and yields an empty range.
func (w *contentWriter) finish() (Content, error) {
	if err := w.flush(); err != nil {
		return Content{}, err
	}
	return Content{
		BlockOffset: w.blockOffset,
		BytesOffset: w.bytesOffset,
		Blocks:      w.blocks,
		Bytes:       w.written,
	}, nil
}
