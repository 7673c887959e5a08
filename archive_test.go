package drive

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/drive/internal/platform"
	"github.com/meigma/drive/internal/testutil"
	"github.com/meigma/drive/protocol"
	"github.com/meigma/drive/storage"
	"github.com/meigma/drive/storage/disk"
)

// newWriter creates a writable archive whose file provider holds files.
func newWriter(t *testing.T, files map[string]string, opts ...ArchiveOption) *Archive {
	t.Helper()
	data := make(map[string][]byte, len(files))
	for name, content := range files {
		data[name] = []byte(content)
	}
	opts = append([]ArchiveOption{WithFile(testutil.Files(t, data, time.Time{}))}, opts...)
	a, err := New().CreateArchive(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// appendAll appends names in order.
func appendAll(t *testing.T, a *Archive, names ...string) {
	t.Helper()
	ctx := testutil.Context(t)
	for _, name := range names {
		require.NoError(t, a.Append(ctx, name))
	}
}

// openReplica opens a replica of src on a separate drive.
func openReplica(t *testing.T, src *Archive, opts ...ArchiveOption) *Archive {
	t.Helper()
	b, err := New().OpenArchive(src.Key(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// connect pipes replication streams of a and b into each other.
func connect(t *testing.T, a, b *Archive, opts ...ReplicateOption) (*protocol.Stream, *protocol.Stream) {
	t.Helper()
	sa, sb := a.Replicate(), b.Replicate(opts...)
	protocol.Pipe(sa, sb)
	t.Cleanup(func() {
		_ = sa.Close()
		_ = sb.Close()
	})
	return sa, sb
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestCreateArchiveDefaults(t *testing.T) {
	t.Parallel()

	a, err := New().CreateArchive()
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Live())
	assert.True(t, a.Writable())
	assert.False(t, a.Finalized())
	assert.Len(t, a.Key(), 32)
	_, ok := a.DiscoveryKey()
	assert.True(t, ok)

	n, err := a.Len(testutil.Context(t))
	require.NoError(t, err)
	assert.Zero(t, n)

	// The header is the only metadata block.
	assert.Equal(t, uint64(1), a.Metadata().Length())
	assert.Zero(t, a.Content().Length())
}

func TestCreateArchiveInvalidBlockSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1, MaxBlockSize + 1} {
		_, err := New().CreateArchive(WithBlockSize(size))
		require.Error(t, err, "block size %d", size)
	}
}

func TestReplicateMaxBlockSize(t *testing.T) {
	t.Parallel()

	data := make([]byte, MaxBlockSize+1)
	_, err := rand.Read(data)
	require.NoError(t, err)
	a := newWriter(t, map[string]string{"big": string(data)}, WithBlockSize(MaxBlockSize))
	appendAll(t, a, "big")

	b := openReplica(t, a)
	connect(t, a, b)
	ctx := testutil.Context(t)

	require.NoError(t, b.Download(ctx, 0))
	got, err := b.ReadFile(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestOpenArchiveInvalidKey(t *testing.T) {
	t.Parallel()

	_, err := New().OpenArchive([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestAppendAndList(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{
		"a.txt":     "alpha",
		"b.txt":     "bravo",
		"sub/c.txt": "charlie",
	})
	ctx := testutil.Context(t)
	appendAll(t, a, "a.txt", "b.txt")
	require.NoError(t, a.Append(ctx, "sub", AppendDirectory()))
	appendAll(t, a, "sub/c.txt")

	entries, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "sub", "sub/c.txt"}, names(entries))

	dir := entries[2]
	assert.True(t, dir.IsDir())
	assert.Nil(t, dir.Content)
	assert.True(t, dir.Mode.IsDir())

	file := entries[3]
	assert.Equal(t, TypeFile, file.Type)
	assert.Equal(t, uint64(len("charlie")), file.Size())
	assert.Equal(t, defaultFileMode, file.Mode)

	t.Run("offset and limit", func(t *testing.T) {
		t.Parallel()
		got, err := a.List(ctx, ListWithOffset(1), ListWithLimit(2))
		require.NoError(t, err)
		assert.Equal(t, []string{"b.txt", "sub"}, names(got))
	})

	t.Run("offset past end", func(t *testing.T) {
		t.Parallel()
		got, err := a.List(ctx, ListWithOffset(10))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("negative offset", func(t *testing.T) {
		t.Parallel()
		_, err := a.List(ctx, ListWithOffset(-1))
		require.Error(t, err)
	})
}

func TestContentOffsets(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{
		"one": "hello",
		"two": "world!!!",
	}, WithBlockSize(4))
	appendAll(t, a, "one", "two")

	entries, err := a.List(testutil.Context(t))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, &Content{BlockOffset: 0, BytesOffset: 0, Blocks: 2, Bytes: 5}, entries[0].Content)
	assert.Equal(t, &Content{BlockOffset: 2, BytesOffset: 5, Blocks: 2, Bytes: 8}, entries[1].Content)
	assert.Equal(t, uint64(4), a.Content().Length())
	assert.Equal(t, uint64(13), a.Content().ByteLength())
}

func TestAppendOptions(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"f": "x"})
	mtime := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	ctime := time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)
	err := a.Append(testutil.Context(t), "f",
		AppendWithMtime(mtime),
		AppendWithCtime(ctime),
		AppendWithMode(0o600),
		AppendWithOwner(1000, 100))
	require.NoError(t, err)

	e, err := a.Get(testutil.Context(t), "f")
	require.NoError(t, err)
	assert.True(t, e.Mtime.Equal(mtime))
	assert.True(t, e.Ctime.Equal(ctime))
	assert.Equal(t, fs.FileMode(0o600), e.Mode)
	assert.Equal(t, uint32(1000), e.UID)
	assert.Equal(t, uint32(100), e.GID)
}

func TestAppendUsesSourceMtime(t *testing.T) {
	t.Parallel()

	mtime := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	files := testutil.Files(t, map[string][]byte{"f": []byte("data")}, mtime)
	a, err := New().CreateArchive(WithFile(files))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Append(testutil.Context(t), "f"))
	e, err := a.Get(testutil.Context(t), "f")
	require.NoError(t, err)
	assert.True(t, e.Mtime.Equal(mtime), "mtime %v", e.Mtime)
}

func TestAppendFromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("on disk"), 0o640))
	require.NoError(t, os.Chmod(path, 0o640))
	mtime := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	info, err := os.Stat(path)
	require.NoError(t, err)
	uid, gid, _ := platform.Owner(info)

	files, err := disk.New(dir)
	require.NoError(t, err)
	defer files.Close()
	a, err := New().CreateArchive(WithFile(files.Provider()))
	require.NoError(t, err)
	defer a.Close()

	ctx := testutil.Context(t)
	require.NoError(t, a.Append(ctx, "f.txt"))
	e, err := a.Get(ctx, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o640), e.Mode)
	assert.True(t, e.Mtime.Equal(mtime), "mtime %v", e.Mtime)
	assert.Equal(t, uid, e.UID)
	assert.Equal(t, gid, e.GID)

	got, err := a.ReadFile(ctx, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(got))
}

func TestAppendNoFileSource(t *testing.T) {
	t.Parallel()

	a, err := New().CreateArchive()
	require.NoError(t, err)
	defer a.Close()

	err = a.Append(testutil.Context(t), "f")
	require.ErrorIs(t, err, ErrNoFileSource)

	// Directories need no source.
	require.NoError(t, a.Append(testutil.Context(t), "d", AppendDirectory()))
}

func TestGetLatestWins(t *testing.T) {
	t.Parallel()

	a := newWriter(t, nil)
	ctx := testutil.Context(t)
	for _, content := range []string{"first", "second"} {
		w, err := a.CreateFileWriter(ctx, "f")
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	entries, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "f"}, names(entries))

	got, err := a.ReadFile(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	_, err = a.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileWriter(t *testing.T) {
	t.Parallel()

	files := storage.MemoryProvider()
	a, err := New().CreateArchive(WithFile(files), WithBlockSize(8))
	require.NoError(t, err)
	defer a.Close()

	ctx := testutil.Context(t)
	mtime := time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC)
	w, err := a.CreateFileWriter(ctx, "out.bin", AppendWithMtime(mtime))
	require.NoError(t, err)

	data := testutil.Pattern(30)
	for chunk := range 3 {
		_, err := w.Write(data[chunk*10 : (chunk+1)*10])
		require.NoError(t, err)
	}

	// The entry is not visible until Close.
	n, err := a.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	require.ErrorIs(t, err, errWriterClosed)

	e, err := a.Get(ctx, "out.bin")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.Blocks())
	assert.Equal(t, uint64(30), e.Size())

	got, err := a.ReadFile(ctx, "out.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Written bytes are mirrored into the file provider.
	assert.Equal(t, data, testutil.ReadStore(t, files, "out.bin"))
	s, err := files("out.bin")
	require.NoError(t, err)
	assert.True(t, s.(storage.ModTimer).ModTime().Equal(mtime))
}

func TestFileWriterEmpty(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "abc"})
	appendAll(t, a, "a")
	ctx := testutil.Context(t)

	w, err := a.CreateFileWriter(ctx, "empty")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	e, err := a.Get(ctx, "empty")
	require.NoError(t, err)
	require.NotNil(t, e.Content)
	assert.Equal(t, Content{BlockOffset: 1, BytesOffset: 3}, *e.Content)
	assert.True(t, a.IsEntryDownloaded(e))

	got, err := a.ReadFile(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileWriterHoldsWriteLock(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "abc"})
	w, err := a.CreateFileWriter(testutil.Context(t), "w")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = a.Append(ctx, "a")
	require.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, w.Close())
	require.NoError(t, a.Append(testutil.Context(t), "a"))
}

func TestConcurrentAppends(t *testing.T) {
	t.Parallel()

	files := make(map[string]string)
	for i := range 8 {
		files[fmt.Sprintf("f%d", i)] = string(testutil.Pattern(100 + i))
	}
	a := newWriter(t, files, WithBlockSize(16))
	ctx := testutil.Context(t)

	var wg sync.WaitGroup
	for name := range files {
		wg.Go(func() {
			assert.NoError(t, a.Append(ctx, name))
		})
	}
	wg.Wait()

	entries, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, len(files))

	var next uint64
	for _, e := range entries {
		assert.Equal(t, next, e.Content.BlockOffset, "entry %s", e.Name)
		next = e.Content.BlockEnd()
		got, err := a.ReadFile(ctx, e.Name)
		require.NoError(t, err)
		assert.Equal(t, files[e.Name], string(got))
	}
}

func TestVersionChangesOnAppend(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "abc"})
	before := a.Version()
	require.NoError(t, before.Validate())
	appendAll(t, a, "a")
	assert.NotEqual(t, before, a.Version())
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha", "b": "bravo"}, WithLive(false))
	ctx := testutil.Context(t)
	assert.False(t, a.Live())
	assert.Nil(t, a.Key())

	appendAll(t, a, "a", "b")
	require.NoError(t, a.Finalize(ctx))
	require.NoError(t, a.Finalize(ctx))

	assert.True(t, a.Finalized())
	assert.False(t, a.Writable())
	assert.Len(t, a.Key(), 32)
	assert.Equal(t, a.Metadata().Key(), a.Key())

	err := a.Append(ctx, "a")
	require.ErrorIs(t, err, ErrNotWritable)
	_, err = a.CreateFileWriter(ctx, "c")
	require.ErrorIs(t, err, ErrNotWritable)

	entries, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(entries))
}

// failingStore fails writes while fail is set.
type failingStore struct {
	storage.Storage
	fail *atomic.Bool
}

func (s failingStore) WriteAt(p []byte, off int64) (int, error) {
	if s.fail.Load() {
		return 0, errors.New("disk full")
	}
	return s.Storage.WriteAt(p, off)
}

func TestFinalizeRetry(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	mem := storage.MemoryProvider()
	provider := func(name string) (storage.Storage, error) {
		s, err := mem(name)
		if err != nil || !strings.HasSuffix(name, "/metadata/data") {
			return s, err
		}
		return failingStore{Storage: s, fail: &fail}, nil
	}
	files := testutil.Files(t, map[string][]byte{"a": []byte("alpha")}, time.Time{})
	a, err := New(WithStorage(provider)).CreateArchive(WithFile(files), WithLive(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	ctx := testutil.Context(t)
	appendAll(t, a, "a")

	fail.Store(true)
	require.Error(t, a.Finalize(ctx))
	assert.False(t, a.Finalized())
	assert.True(t, a.Content().Sealed())
	require.ErrorIs(t, a.Append(ctx, "a"), ErrNotWritable)

	fail.Store(false)
	require.NoError(t, a.Finalize(ctx))
	assert.True(t, a.Finalized())
	assert.Len(t, a.Key(), 32)
	// Header, one entry and a single seal record.
	assert.Equal(t, uint64(3), a.Metadata().Length())

	b := openReplica(t, a)
	connect(t, a, b)
	got, err := b.ReadFile(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))
}

func TestFinalizeLiveIsNoop(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha"})
	key := a.Key()
	require.NoError(t, a.Finalize(testutil.Context(t)))
	assert.False(t, a.Finalized())
	assert.Equal(t, key, a.Key())
	appendAll(t, a, "a")
}

func TestReplicateLive(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{
		"a.txt": "alpha",
		"b.bin": string(testutil.Pattern(5000)),
	}, WithBlockSize(1024))
	appendAll(t, a, "a.txt", "b.bin")

	b := openReplica(t, a)
	connect(t, a, b)
	ctx := testutil.Context(t)

	entries, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.bin"}, names(entries))
	assert.True(t, b.Live())
	assert.False(t, b.Writable())

	got, err := b.ReadFile(ctx, "b.bin")
	require.NoError(t, err)
	assert.Equal(t, testutil.Pattern(5000), got)

	// Only the file read was fetched.
	assert.Equal(t, uint64(5), b.CountDownloadedBlocks(entries[1]))
	assert.Zero(t, b.CountDownloadedBlocks(entries[0]))
	assert.False(t, b.IsEntryDownloaded(entries[0]))

	require.NoError(t, b.Download(ctx, 0))
	assert.True(t, b.IsEntryDownloaded(entries[0]))

	err = b.Append(ctx, "a.txt")
	require.ErrorIs(t, err, ErrNotWritable)
	require.ErrorIs(t, b.Finalize(ctx), ErrNotWritable)
}

func TestReplicateLiveGrowth(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha", "b": "bravo", "c": "charlie"})
	appendAll(t, a, "a")

	b := openReplica(t, a)
	connect(t, a, b)
	ctx := testutil.Context(t)

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	appendAll(t, a, "b")
	require.Eventually(t, func() bool {
		n, err := b.Len(ctx)
		return err == nil && n == 2
	}, 5*time.Second, 10*time.Millisecond)

	got, err := b.ReadFile(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))

	// Download refreshes the entry count on its own.
	appendAll(t, a, "c")
	require.Eventually(t, func() bool {
		return b.Download(ctx, 2) == nil
	}, 5*time.Second, 10*time.Millisecond)
	entries, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, b.IsEntryDownloaded(entries[2]))
}

func TestReplicateFinalized(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha", "b": "bravo"}, WithLive(false))
	ctx := testutil.Context(t)
	appendAll(t, a, "a", "b")
	require.NoError(t, a.Finalize(ctx))

	b := openReplica(t, a)
	connect(t, a, b)

	entries, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(entries))
	assert.False(t, b.Live())
	assert.True(t, b.Finalized())

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := b.ReadFile(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))
	assert.Equal(t, a.Content().Key(), b.Content().Key())
}

func TestReplicateDownloadAll(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"big": string(testutil.Pattern(10000))}, WithBlockSize(1000))
	appendAll(t, a, "big")

	b := openReplica(t, a)
	connect(t, a, b, WithDownloadAll())

	require.Eventually(t, func() bool {
		c := b.Content()
		return c != nil && c.CountRange(0, 10) == 10 && b.Metadata().CountRange(0, 2) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDownloadMaterialisesFile(t *testing.T) {
	t.Parallel()

	mtime := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	src := testutil.Files(t, map[string][]byte{"f": []byte("materialised")}, mtime)
	a, err := New().CreateArchive(WithFile(src))
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Append(testutil.Context(t), "f"))
	require.NoError(t, a.Append(testutil.Context(t), "d", AppendDirectory()))

	dst := storage.MemoryProvider()
	b := openReplica(t, a, WithFile(dst))
	connect(t, a, b)
	ctx := testutil.Context(t)

	require.NoError(t, b.Download(ctx, 0))
	require.NoError(t, b.Download(ctx, 1))
	assert.Equal(t, []byte("materialised"), testutil.ReadStore(t, dst, "f"))
	s, err := dst("f")
	require.NoError(t, err)
	assert.True(t, s.(storage.ModTimer).ModTime().Equal(mtime))

	err = b.Download(ctx, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetTimeout(t *testing.T) {
	t.Parallel()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	b, err := New().OpenArchive(key)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Get(context.Background(), "f", GetWithTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPeerUnavailable(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha"})
	appendAll(t, a, "a")

	// b and c are both empty replicas, so b's read can never be served.
	b := openReplica(t, a)
	c := openReplica(t, a)
	sb, sc := b.Replicate(), c.Replicate()
	t.Cleanup(func() { _ = sb.Close() })

	errc := make(chan error, 1)
	go func() {
		_, err := b.List(testutil.Context(t))
		errc <- err
	}()
	protocol.Pipe(sb, sc)
	// Let the list register its read before the only peer leaves.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, b.Metadata().Peers())

	require.NoError(t, sc.Close())
	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrPeerUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("list did not fail")
	}
}

func TestCloseFailsPendingReads(t *testing.T) {
	t.Parallel()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	b, err := New().OpenArchive(key)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := b.List(testutil.Context(t))
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("list did not fail")
	}
}

func TestSelfReplication(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha"})
	appendAll(t, a, "a")
	s1, s2 := a.Replicate(), a.Replicate()
	protocol.Pipe(s1, s2)

	got, err := a.ReadFile(testutil.Context(t), "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	require.NoError(t, s1.Close())
	require.NoError(t, s2.Close())
}

func TestReplicateConn(t *testing.T) {
	t.Parallel()

	a := newWriter(t, map[string]string{"a": "alpha"})
	appendAll(t, a, "a")
	b := openReplica(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	c1, c2 := net.Pipe()
	errs := make(chan error, 2)
	go func() { errs <- a.ReplicateConn(ctx, c1) }()
	go func() { errs <- b.ReplicateConn(ctx, c2) }()

	got, err := b.ReadFile(testutil.Context(t), "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	cancel()
	for range 2 {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("replication did not stop")
		}
	}
}

func TestReplicateAfterClose(t *testing.T) {
	t.Parallel()

	a, err := New().CreateArchive()
	require.NoError(t, err)
	require.NoError(t, a.Close())

	s := a.Replicate()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
	}

	err = a.ReplicateConn(context.Background(), nil)
	require.ErrorIs(t, err, ErrClosed)
}
