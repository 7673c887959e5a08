package drive

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/meigma/drive/feed"
	"github.com/meigma/drive/storage"
)

// Drive creates and opens archives that share one storage provider for
// their feed state.
type Drive struct {
	storage storage.Provider
	logger  *slog.Logger
}

// New creates a Drive. Without WithStorage feed state is kept in memory.
func New(opts ...Option) *Drive {
	d := &Drive{}
	for _, opt := range opts {
		opt(d)
	}
	if d.storage == nil {
		d.storage = storage.MemoryProvider()
	}
	return d
}

// CreateArchive creates a new writable archive and writes its header.
func (d *Drive) CreateArchive(opts ...ArchiveOption) (*Archive, error) {
	cfg := archiveConfig{live: true, blockSize: DefaultBlockSize, logger: d.logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockSize <= 0 || cfg.blockSize > MaxBlockSize {
		return nil, fmt.Errorf("drive: invalid block size %d (want 1 to %d)", cfg.blockSize, MaxBlockSize)
	}

	a, err := d.newArchive(&cfg)
	if err != nil {
		return nil, err
	}
	a.writable = true
	a.live = cfg.live

	if a.metadata, err = a.createFeed("metadata", cfg.live); err != nil {
		return nil, err
	}
	if a.content, err = a.createFeed("content", cfg.live); err != nil {
		a.metadata.Close()
		return nil, err
	}
	if err := a.writeHeader(); err != nil {
		a.Close()
		return nil, err
	}
	a.log().Info("archive created", "live", cfg.live, "block_size", cfg.blockSize)
	return a, nil
}

// OpenArchive opens a read-only replica of the archive with the given key.
// Entries become readable once a replication peer supplies them.
func (d *Drive) OpenArchive(key []byte, opts ...ArchiveOption) (*Archive, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	cfg := archiveConfig{blockSize: DefaultBlockSize, logger: d.logger}
	for _, opt := range opts {
		opt(&cfg)
	}

	a, err := d.newArchive(&cfg)
	if err != nil {
		return nil, err
	}
	store, err := feed.OpenStorage(d.storage, a.prefix+"/metadata")
	if err != nil {
		return nil, fmt.Errorf("drive: open metadata storage: %w", err)
	}
	if a.metadata, err = feed.Clone("metadata", key, store, feed.WithLogger(a.logger)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	a.log().Debug("archive opened")
	return a, nil
}

// newArchive allocates an archive with a unique storage prefix.
func (d *Drive) newArchive(cfg *archiveConfig) (*Archive, error) {
	var id [8]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("drive: archive id: %w", err)
	}
	a := newArchive(cfg)
	a.storage = d.storage
	a.prefix = "archives/" + hex.EncodeToString(id[:])
	return a, nil
}
