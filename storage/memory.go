package storage

import (
	"errors"
	"io"
	"sync"
	"time"
)

// Memory is an in-memory Storage. The zero value is an empty store.
type Memory struct {
	mu    sync.RWMutex
	data  []byte
	mtime time.Time
}

// Interface compliance.
var (
	_ Storage  = (*Memory)(nil)
	_ Timer    = (*Memory)(nil)
	_ ModTimer = (*Memory)(nil)
)

// NewMemory returns a store holding a copy of data.
func NewMemory(data []byte) *Memory {
	return &Memory{data: append([]byte(nil), data...)}
}

// ReadAt implements io.ReaderAt.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("storage: negative offset")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off >= int64(len(m.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("storage: negative offset")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}
	copy(m.data[off:], p)
	return len(p), nil
}

// Size returns the length of the store.
func (m *Memory) Size() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data)), nil
}

// Bytes returns a copy of the stored bytes.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}

// SetModTime records mtime.
func (m *Memory) SetModTime(mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mtime = mtime
	return nil
}

// ModTime returns the last time recorded by SetModTime, or the zero time.
func (m *Memory) ModTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mtime
}

// Close is a no-op; the bytes stay available to later readers of the
// same store.
func (m *Memory) Close() error {
	return nil
}

// MemoryProvider returns a Provider backed by Memory stores. Opening the
// same name twice returns the same store.
func MemoryProvider() Provider {
	var mu sync.Mutex
	stores := make(map[string]*Memory)
	return func(name string) (Storage, error) {
		mu.Lock()
		defer mu.Unlock()
		m, ok := stores[name]
		if !ok {
			m = &Memory{}
			stores[name] = m
		}
		return m, nil
	}
}
