package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/drive/feed"
	"github.com/meigma/drive/internal/record"
	"github.com/meigma/drive/protocol"
	"github.com/meigma/drive/storage"
)

// Archive is a versioned tree of files stored in a metadata feed and a
// content feed.
//
// A writable archive is created with Drive.CreateArchive; a replica is
// opened from a key with Drive.OpenArchive and fills in as peers supply
// blocks. Archive is safe for concurrent use; appends are serialized.
type Archive struct {
	storage   storage.Provider
	prefix    string
	files     storage.Provider
	blockSize int
	logger    *slog.Logger

	// writeSem admits one append or open FileWriter at a time.
	writeSem *semaphore.Weighted
	readies  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	metadata *feed.Feed
	writable bool

	mu        sync.Mutex
	content   *feed.Feed
	live      bool
	finalized bool
	sealed    bool // metadata ends with a seal record
	sessions  []*protocol.Session
	closed    bool
}

func newArchive(cfg *archiveConfig) *Archive {
	ctx, cancel := context.WithCancel(context.Background())
	return &Archive{
		files:     cfg.files,
		blockSize: cfg.blockSize,
		logger:    cfg.logger,
		writeSem:  semaphore.NewWeighted(1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// createFeed creates a writable feed under the archive prefix. Live
// archives use signed feeds; non-live ones are sealed on Finalize.
func (a *Archive) createFeed(name string, signed bool) (*feed.Feed, error) {
	store, err := feed.OpenStorage(a.storage, a.prefix+"/"+name)
	if err != nil {
		return nil, fmt.Errorf("drive: open %s storage: %w", name, err)
	}
	f, err := feed.Create(name, store, feed.WithSigned(signed), feed.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("drive: create %s feed: %w", name, err)
	}
	return f, nil
}

// writeHeader appends the header record as metadata block 0.
func (a *Archive) writeHeader() error {
	h := record.Header{Version: record.Version, Live: a.live}
	if a.live {
		h.ContentKey = a.content.Key()
	}
	if _, err := a.metadata.Append(record.EncodeHeader(h)); err != nil {
		return fmt.Errorf("drive: write header: %w", err)
	}
	return nil
}

// Key returns the archive key: the metadata feed key. It is nil for a
// non-live archive until Finalize.
func (a *Archive) Key() []byte {
	return a.metadata.Key()
}

// DiscoveryKey returns the hash peers use to find each other without
// revealing the key. ok is false while the archive has no key.
func (a *Archive) DiscoveryKey() (feed.Hash, bool) {
	return a.metadata.DiscoveryKey()
}

// Writable reports whether entries can still be appended.
func (a *Archive) Writable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && a.acceptsEntriesLocked()
}

// Live reports whether the archive is live. For a replica the answer is
// only known once the header has been replicated; until then it is false.
func (a *Archive) Live() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Finalized reports whether the archive is sealed and immutable.
func (a *Archive) Finalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}

// Metadata returns the metadata feed.
func (a *Archive) Metadata() *feed.Feed {
	return a.metadata
}

// Content returns the content feed, or nil while a replica has not yet
// learned its key.
func (a *Archive) Content() *feed.Feed {
	return a.contentFeed()
}

func (a *Archive) contentFeed() *feed.Feed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.content
}

// Version returns a digest identifying the archive's current state. It
// changes with every append.
func (a *Archive) Version() digest.Digest {
	tree := a.metadata.TreeHash()
	return digest.FromBytes(tree[:])
}

// Len returns the number of entries, waiting for a replica to learn its
// header.
func (a *Archive) Len(ctx context.Context) (int, error) {
	if err := a.ready(ctx); err != nil {
		return 0, err
	}
	if err := a.update(ctx); err != nil {
		return 0, err
	}
	return int(a.entryCount()), nil
}

// update brings a live replica's metadata up to the longest length its
// peers announced. A peer leaving mid-update leaves the local state as is.
func (a *Archive) update(ctx context.Context) error {
	if a.writable || !a.Live() {
		return nil
	}
	err := a.metadata.Update(ctx)
	if errors.Is(err, feed.ErrPeerUnavailable) {
		return nil
	}
	return mapError(err)
}

// entryCount returns how many metadata blocks are entries: every block
// after the header, minus the trailing seal of a finalized non-live archive.
func (a *Archive) entryCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.metadata.Length()
	if n == 0 {
		return 0
	}
	n--
	if a.sealed && n > 0 {
		n--
	}
	return n
}

// ready waits until the content feed is known. Writable archives are
// always ready; a replica reads its header (and seal, when not live) and
// clones the content feed. Concurrent callers share one attempt, which runs
// for the archive's lifetime rather than any one caller's ctx.
func (a *Archive) ready(ctx context.Context) error {
	if a.contentFeed() != nil {
		return nil
	}
	ch := a.readies.DoChan("ready", func() (any, error) {
		return nil, a.openContent(a.ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil && a.ctx.Err() != nil {
			return ErrClosed
		}
		return mapError(res.Err)
	case <-ctx.Done():
		return mapError(ctx.Err())
	}
}

// openContent learns the content key from replicated metadata and clones
// the content feed.
func (a *Archive) openContent(ctx context.Context) error {
	if a.contentFeed() != nil {
		return nil
	}
	block, err := a.metadata.Get(ctx, 0)
	if err != nil {
		return err
	}
	rec, err := record.Decode(block)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if rec.Kind != record.KindHeader {
		return fmt.Errorf("%w: block 0 is a %s record", ErrCorruptRecord, rec.Kind)
	}

	live := rec.Header.Live
	key := rec.Header.ContentKey
	if !live {
		// A non-live archive only has a key once it is sealed, so the
		// verified length ends with the seal record.
		n := a.metadata.Length()
		if n < 2 {
			return fmt.Errorf("%w: non-live archive has no seal", ErrCorruptRecord)
		}
		block, err := a.metadata.Get(ctx, n-1)
		if err != nil {
			return err
		}
		rec, err := record.Decode(block)
		if err != nil {
			return fmt.Errorf("seal: %w", err)
		}
		if rec.Kind != record.KindSeal {
			return fmt.Errorf("%w: last block is a %s record", ErrCorruptRecord, rec.Kind)
		}
		key = rec.Seal.ContentKey
	}

	store, err := feed.OpenStorage(a.storage, a.prefix+"/content")
	if err != nil {
		return fmt.Errorf("drive: open content storage: %w", err)
	}
	content, err := feed.Clone("content", key, store, feed.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("%w: content key: %w", ErrCorruptRecord, err)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		content.Close()
		return ErrClosed
	}
	a.content = content
	a.live = live
	a.finalized = !live
	a.sealed = !live
	sessions := slices.Clone(a.sessions)
	a.mu.Unlock()

	for _, s := range sessions {
		a.attach(s, protocol.ChannelContent, content)
	}
	a.log().Debug("content feed opened", "live", live, "sessions", len(sessions))
	return nil
}

// Close stops replication and releases both feeds. Blocked reads fail with
// ErrClosed. Closing twice is a no-op.
func (a *Archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sessions := a.sessions
	a.sessions = nil
	content := a.content
	a.mu.Unlock()

	a.cancel()
	for _, s := range sessions {
		s.Close()
	}
	var errs []error
	if a.metadata != nil {
		errs = append(errs, a.metadata.Close())
	}
	if content != nil {
		errs = append(errs, content.Close())
	}
	a.log().Debug("archive closed")
	return errors.Join(errs...)
}
