package drive

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/meigma/drive/protocol"
	"github.com/meigma/drive/storage"
)

// DefaultBlockSize is the content block size used when WithBlockSize is not
// given. Files are cut into blocks of exactly this size, except for the last
// block of each file.
const DefaultBlockSize = 64 << 10

// MaxBlockSize is the largest block size WithBlockSize accepts: the largest
// block that still fits in one replication frame.
const MaxBlockSize = protocol.MaxBlockSize

// ArchiveOption configures CreateArchive and OpenArchive.
type ArchiveOption func(*archiveConfig)

type archiveConfig struct {
	live      bool
	files     storage.Provider
	blockSize int
	logger    *slog.Logger
}

// WithLive controls whether a created archive is live (the default). A
// non-live archive accepts entries until Finalize seals it.
// OpenArchive ignores this option; the header decides.
func WithLive(live bool) ArchiveOption {
	return func(c *archiveConfig) {
		c.live = live
	}
}

// WithFile sets the provider that maps entry names to stores. Append reads
// file content from it, CreateFileWriter mirrors written bytes into it, and
// downloads on an opened archive are materialised into it.
func WithFile(p storage.Provider) ArchiveOption {
	return func(c *archiveConfig) {
		c.files = p
	}
}

// WithBlockSize sets the content block size for a created archive.
func WithBlockSize(n int) ArchiveOption {
	return func(c *archiveConfig) {
		c.blockSize = n
	}
}

// WithArchiveLogger overrides the drive logger for one archive.
func WithArchiveLogger(logger *slog.Logger) ArchiveOption {
	return func(c *archiveConfig) {
		c.logger = logger
	}
}

// AppendOption configures Append and CreateFileWriter.
type AppendOption func(*appendConfig)

type appendConfig struct {
	directory bool
	mode      fs.FileMode
	modeSet   bool
	uid       uint32
	gid       uint32
	ownerSet  bool
	mtime     time.Time
	ctime     time.Time
}

// AppendDirectory appends a directory entry. No file is read and the entry
// has no content.
func AppendDirectory() AppendOption {
	return func(c *appendConfig) {
		c.directory = true
	}
}

// AppendWithMtime stores mtime verbatim as the modification time.
// Without it, Append uses the source store's modification time when it
// reports one, and the current time otherwise.
func AppendWithMtime(mtime time.Time) AppendOption {
	return func(c *appendConfig) {
		c.mtime = mtime
	}
}

// AppendWithCtime stores ctime as the change time. The default is the
// current time.
func AppendWithCtime(ctime time.Time) AppendOption {
	return func(c *appendConfig) {
		c.ctime = ctime
	}
}

// AppendWithMode stores mode. The default is the permission bits of a file
// read from a disk store, 0644 for other files and fs.ModeDir|0755 for
// directories.
func AppendWithMode(mode fs.FileMode) AppendOption {
	return func(c *appendConfig) {
		c.mode = mode
		c.modeSet = true
	}
}

// AppendWithOwner stores the owner's user and group IDs. Without it, files
// read from a disk store record the file's owner.
func AppendWithOwner(uid, gid uint32) AppendOption {
	return func(c *appendConfig) {
		c.uid = uid
		c.gid = gid
		c.ownerSet = true
	}
}

// ListOption configures List.
type ListOption func(*listConfig)

type listConfig struct {
	offset int
	limit  int
}

// ListWithOffset skips the first n entries.
func ListWithOffset(n int) ListOption {
	return func(c *listConfig) {
		c.offset = n
	}
}

// ListWithLimit returns at most n entries. Zero means no limit.
func ListWithLimit(n int) ListOption {
	return func(c *listConfig) {
		c.limit = n
	}
}

// GetOption configures Get and ReadFile.
type GetOption func(*getConfig)

type getConfig struct {
	timeout time.Duration
}

// GetWithTimeout bounds how long Get waits for metadata from peers. When it
// elapses Get fails with ErrTimeout.
func GetWithTimeout(d time.Duration) GetOption {
	return func(c *getConfig) {
		c.timeout = d
	}
}

// ReplicateOption configures Replicate and ReplicateConn.
type ReplicateOption func(*replicateConfig)

type replicateConfig struct {
	downloadAll bool
}

// WithDownloadAll mirrors every block the remote holds instead of only the
// blocks local reads ask for.
func WithDownloadAll() ReplicateOption {
	return func(c *replicateConfig) {
		c.downloadAll = true
	}
}
