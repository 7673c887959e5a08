package drive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"time"

	"github.com/meigma/drive/internal/platform"
	"github.com/meigma/drive/internal/record"
	"github.com/meigma/drive/protocol"
	"github.com/meigma/drive/storage"
)

// Default entry modes.
const (
	defaultFileMode = fs.FileMode(0o644)
	defaultDirMode  = fs.ModeDir | 0o755
)

// Append adds an entry named name. For a file the content is read from the
// archive's file provider; AppendDirectory adds a directory instead.
//
// Appends are serialized: a concurrent Append or open FileWriter blocks
// this call until it finishes or ctx ends. Appending to a replica or a
// finalized archive fails with ErrNotWritable.
func (a *Archive) Append(ctx context.Context, name string, opts ...AppendOption) error {
	var cfg appendConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := a.acquire(ctx); err != nil {
		return err
	}
	defer a.writeSem.Release(1)

	entry := a.newEntry(name, &cfg)
	if cfg.directory {
		return a.appendEntry(entry)
	}

	if a.files == nil {
		return fmt.Errorf("%w: %s", ErrNoFileSource, name)
	}
	src, err := a.files(name)
	if err != nil {
		return fmt.Errorf("drive: open %s: %w", name, err)
	}
	defer src.Close()
	if err := applySource(&entry, src, &cfg); err != nil {
		return fmt.Errorf("drive: stat %s: %w", name, err)
	}

	size, err := src.Size()
	if err != nil {
		return fmt.Errorf("drive: size %s: %w", name, err)
	}
	cw := newContentWriter(a.content, a.blockSize)
	if _, err := io.Copy(cw, io.NewSectionReader(src, 0, size)); err != nil {
		return fmt.Errorf("drive: append %s: %w", name, err)
	}
	content, err := cw.finish()
	if err != nil {
		return fmt.Errorf("drive: append %s: %w", name, err)
	}
	entry.Content = &content
	return a.appendEntry(entry)
}

// Finalize seals a non-live archive. Both feeds become immutable, the
// content key is published in a seal record, and the archive key becomes
// the hash of the metadata. Finalize is a no-op for live archives and for
// archives already finalized.
//
// Once the content feed is sealed no more entries can be appended, even if
// a later step fails. Calling Finalize again completes the remaining steps.
func (a *Archive) Finalize(ctx context.Context) error {
	if !a.writable {
		return ErrNotWritable
	}
	if err := a.writeSem.Acquire(ctx, 1); err != nil {
		return mapError(err)
	}
	defer a.writeSem.Release(1)

	a.mu.Lock()
	closed, done, sealed := a.closed, a.finalized || a.live, a.sealed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if done {
		return nil
	}

	contentKey, err := a.content.Seal()
	if err != nil {
		return fmt.Errorf("drive: seal content: %w", mapError(err))
	}
	if !sealed {
		seal := record.EncodeSeal(record.Seal{
			ContentKey: contentKey,
			Length:     a.content.Length(),
			Bytes:      a.content.ByteLength(),
		})
		a.mu.Lock()
		_, err = a.metadata.Append(seal)
		if err == nil {
			a.sealed = true
		}
		a.mu.Unlock()
		if err != nil {
			return fmt.Errorf("drive: write seal: %w", mapError(err))
		}
	}
	key, err := a.metadata.Seal()
	if err != nil {
		return fmt.Errorf("drive: seal metadata: %w", mapError(err))
	}

	a.mu.Lock()
	a.finalized = true
	sessions := slices.Clone(a.sessions)
	a.mu.Unlock()
	for _, s := range sessions {
		a.attach(s, protocol.ChannelMetadata, a.metadata)
		a.attach(s, protocol.ChannelContent, a.content)
	}
	a.log().Info("archive finalized",
		"key", fmt.Sprintf("%x", key),
		"entries", a.entryCount(),
		"content_blocks", a.content.Length(),
		"content_bytes", a.content.ByteLength())
	return nil
}

// acquire takes the write lock and checks the archive still accepts
// entries.
func (a *Archive) acquire(ctx context.Context) error {
	if err := a.writeSem.Acquire(ctx, 1); err != nil {
		return mapError(err)
	}
	a.mu.Lock()
	closed, writable := a.closed, a.acceptsEntriesLocked()
	a.mu.Unlock()
	switch {
	case closed:
		a.writeSem.Release(1)
		return ErrClosed
	case !writable:
		a.writeSem.Release(1)
		return ErrNotWritable
	}
	return nil
}

// acceptsEntriesLocked reports whether entries can be appended. The content
// feed of an archive whose Finalize failed midway is already sealed.
func (a *Archive) acceptsEntriesLocked() bool {
	return a.writable && !a.finalized && !a.content.Sealed()
}

// newEntry builds the metadata for name from cfg. Unset times default to
// now and unset modes to the type's default.
func (a *Archive) newEntry(name string, cfg *appendConfig) Entry {
	now := time.Now()
	e := Entry{
		Name:  name,
		Type:  TypeFile,
		Mode:  defaultFileMode,
		UID:   cfg.uid,
		GID:   cfg.gid,
		Mtime: cfg.mtime,
		Ctime: cfg.ctime,
	}
	if cfg.directory {
		e.Type = TypeDirectory
		e.Mode = defaultDirMode
	}
	if cfg.modeSet {
		e.Mode = cfg.mode
	}
	if e.Mtime.IsZero() {
		e.Mtime = now
	}
	if e.Ctime.IsZero() {
		e.Ctime = now
	}
	return e
}

// applySource fills attributes the caller did not set from what src knows
// about itself: modification time, permission bits and owner.
func applySource(e *Entry, src storage.Storage, cfg *appendConfig) error {
	if cfg.mtime.IsZero() {
		if mt, ok := src.(storage.ModTimer); ok && !mt.ModTime().IsZero() {
			e.Mtime = mt.ModTime()
		}
	}
	st, ok := src.(storage.Stater)
	if !ok {
		return nil
	}
	info, err := st.Stat()
	if err != nil {
		return err
	}
	if !cfg.modeSet {
		e.Mode = info.Mode().Perm()
	}
	if !cfg.ownerSet {
		if uid, gid, ok := platform.Owner(info); ok {
			e.UID, e.GID = uid, gid
		}
	}
	return nil
}

// appendEntry writes e to the metadata feed. The caller holds the write
// lock and has already appended e's content.
func (a *Archive) appendEntry(e Entry) error {
	if _, err := a.metadata.Append(record.EncodeEntry(e)); err != nil {
		return fmt.Errorf("drive: append entry %s: %w", e.Name, mapError(err))
	}
	a.log().Debug("entry appended",
		"name", e.Name,
		"type", e.Type,
		"blocks", e.Blocks(),
		"bytes", e.Size())
	return nil
}
