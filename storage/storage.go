// Package storage defines the random-access byte stores used by archives.
//
// Feeds keep their block data, hash tree and block index in stores, and
// archives read source files from (and materialise downloaded files into)
// stores handed out by a [Provider]. Implementations exist for memory
// ([Memory]), local files (storage/disk) and HTTP range requests
// (storage/http).
package storage

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrReadOnly is returned by WriteAt on stores opened without write access.
var ErrReadOnly = errors.New("storage: read-only")

// ErrClosed is returned when a store is used after Close.
var ErrClosed = errors.New("storage: closed")

// Storage provides random access to a single logical byte range.
//
// ReadAt follows io.ReaderAt semantics: reading past the end returns the
// bytes that exist along with io.EOF. WriteAt extends the store as needed;
// gaps are zero-filled. Implementations must be safe for concurrent use.
type Storage interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the current length of the store in bytes.
	Size() (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// Timer is implemented by stores that can record a modification time.
type Timer interface {
	SetModTime(mtime time.Time) error
}

// ModTimer is implemented by stores that know when their content was last
// modified. Archives record it as the entry mtime when appending.
type ModTimer interface {
	ModTime() time.Time
}

// Stater is implemented by stores backed by a file system entry. Archives
// record its permission bits and owner when appending.
type Stater interface {
	Stat() (fs.FileInfo, error)
}

// Provider maps a logical name to a store. Providers are called once per
// name per open; callers own and close the returned store.
type Provider func(name string) (Storage, error)

// ReadFull reads exactly len(p) bytes at off. A short store yields
// io.ErrUnexpectedEOF.
func ReadFull(s Storage, p []byte, off int64) error {
	n, err := s.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
