// Package testutil holds helpers shared by archive tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/meigma/drive/storage"
)

// DefaultTimeout bounds how long a test waits for replication.
const DefaultTimeout = 10 * time.Second

// Context returns a context that ends after DefaultTimeout or when the test
// finishes.
func Context(tb testing.TB) context.Context {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	tb.Cleanup(cancel)
	return ctx
}

// Files returns a memory provider preloaded with files. Each store reports
// mtime as its modification time when mtime is non-zero.
func Files(tb testing.TB, files map[string][]byte, mtime time.Time) storage.Provider {
	tb.Helper()
	p := storage.MemoryProvider()
	for name, data := range files {
		s, err := p(name)
		if err != nil {
			tb.Fatalf("open %s: %v", name, err)
		}
		if _, err := s.WriteAt(data, 0); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
		if !mtime.IsZero() {
			if err := s.(storage.Timer).SetModTime(mtime); err != nil {
				tb.Fatalf("set mtime %s: %v", name, err)
			}
		}
	}
	return p
}

// ReadStore returns the full content of name in p.
func ReadStore(tb testing.TB, p storage.Provider, name string) []byte {
	tb.Helper()
	s, err := p(name)
	if err != nil {
		tb.Fatalf("open %s: %v", name, err)
	}
	defer s.Close()
	size, err := s.Size()
	if err != nil {
		tb.Fatalf("size %s: %v", name, err)
	}
	buf := make([]byte, size)
	if err := storage.ReadFull(s, buf, 0); err != nil {
		tb.Fatalf("read %s: %v", name, err)
	}
	return buf
}

// Pattern returns n deterministic, poorly compressible bytes.
func Pattern(n int) []byte {
	buf := make([]byte, n)
	x := uint32(2463534242)
	for i := range buf {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		buf[i] = byte(x)
	}
	return buf
}
