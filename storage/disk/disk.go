// Package disk provides file-backed stores rooted at a local directory.
package disk

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/drive/storage"
)

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// Dir hands out stores for files beneath a root directory. Names are
// slash-separated and resolved with os.Root, so they cannot escape the root.
// Dir is safe for concurrent use.
type Dir struct {
	root     *os.Root
	dir      string      // root directory
	dirPerm  os.FileMode // permissions for created directories
	filePerm os.FileMode // permissions for created files
	readOnly bool        // open files without write access
}

// Option configures a Dir.
type Option func(*Dir)

// WithDirPerm sets the permissions used for created directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(d *Dir) {
		d.dirPerm = mode
	}
}

// WithFilePerm sets the permissions used for created files.
func WithFilePerm(mode os.FileMode) Option {
	return func(d *Dir) {
		d.filePerm = mode
	}
}

// WithReadOnly opens existing files for reading only. Missing files are an
// error and WriteAt returns storage.ErrReadOnly.
func WithReadOnly() Option {
	return func(d *Dir) {
		d.readOnly = true
	}
}

// New creates a Dir rooted at dir, creating it when writable.
func New(dir string, opts ...Option) (*Dir, error) {
	if dir == "" {
		return nil, errors.New("disk: dir is empty")
	}
	d := &Dir{
		dir:      dir,
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
	}
	for _, opt := range opts {
		opt(d)
	}
	if !d.readOnly {
		if err := os.MkdirAll(dir, d.dirPerm); err != nil {
			return nil, err
		}
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	d.root = root
	return d, nil
}

// Open returns the store for name.
func (d *Dir) Open(name string) (storage.Storage, error) {
	if name == "" {
		return nil, errors.New("disk: empty name")
	}
	fsPath := filepath.FromSlash(name)
	if d.readOnly {
		f, err := d.root.Open(fsPath)
		if err != nil {
			return nil, err
		}
		return &File{f: f, root: d.root, path: fsPath, readOnly: true}, nil
	}
	if parent := filepath.Dir(fsPath); parent != "." {
		if err := d.root.MkdirAll(parent, d.dirPerm); err != nil {
			return nil, fmt.Errorf("disk: create %s: %w", parent, err)
		}
	}
	f, err := d.root.OpenFile(fsPath, os.O_RDWR|os.O_CREATE, d.filePerm)
	if err != nil {
		return nil, err
	}
	return &File{f: f, root: d.root, path: fsPath}, nil
}

// Provider returns d.Open as a storage.Provider.
func (d *Dir) Provider() storage.Provider {
	return d.Open
}

// Path returns the root directory.
func (d *Dir) Path() string {
	return d.dir
}

// Close releases the root handle. Stores opened earlier stay usable.
func (d *Dir) Close() error {
	return d.root.Close()
}

// File is a store backed by one file.
type File struct {
	f        *os.File
	root     *os.Root
	path     string
	readOnly bool
}

// Interface compliance.
var (
	_ storage.Storage  = (*File)(nil)
	_ storage.Timer    = (*File)(nil)
	_ storage.ModTimer = (*File)(nil)
	_ storage.Stater   = (*File)(nil)
)

// ReadAt implements io.ReaderAt.
func (s *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.f.ReadAt(p, off)
	if errors.Is(err, os.ErrClosed) {
		return n, storage.ErrClosed
	}
	if n == 0 && len(p) == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// WriteAt implements io.WriterAt.
func (s *File) WriteAt(p []byte, off int64) (int, error) {
	if s.readOnly {
		return 0, storage.ErrReadOnly
	}
	n, err := s.f.WriteAt(p, off)
	if errors.Is(err, os.ErrClosed) {
		return n, storage.ErrClosed
	}
	return n, err
}

// Size returns the file size.
func (s *File) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// SetModTime sets the file's access and modification times to mtime.
func (s *File) SetModTime(mtime time.Time) error {
	if s.readOnly {
		return storage.ErrReadOnly
	}
	return s.root.Chtimes(s.path, mtime, mtime)
}

// ModTime returns the file's modification time, or the zero time if it
// cannot be read.
func (s *File) ModTime() time.Time {
	info, err := s.f.Stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Stat returns the file's attributes.
func (s *File) Stat() (fs.FileInfo, error) {
	return s.f.Stat()
}

// Close closes the file.
func (s *File) Close() error {
	return s.f.Close()
}
