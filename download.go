package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/meigma/drive/storage"
)

// Download fetches the content of entry index (in append order) from peers
// and, for a replica with a file provider, writes it out as a local file.
func (a *Archive) Download(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: entry %d", ErrNotFound, index)
	}
	if err := a.ready(ctx); err != nil {
		return err
	}
	if err := a.update(ctx); err != nil {
		return err
	}
	if uint64(index) >= a.entryCount() {
		return fmt.Errorf("%w: entry %d", ErrNotFound, index)
	}
	e, err := a.entry(ctx, uint64(index))
	if err != nil {
		return err
	}
	return a.DownloadEntry(ctx, e)
}

// DownloadEntry fetches every content block of e. Directories and empty
// files have nothing to fetch.
func (a *Archive) DownloadEntry(ctx context.Context, e Entry) error {
	if err := a.ready(ctx); err != nil {
		return err
	}
	if e.Content == nil {
		return nil
	}
	if e.Content.Blocks > 0 {
		c := e.Content
		if err := a.contentFeed().Download(ctx, c.BlockOffset, c.BlockEnd()); err != nil {
			return mapError(err)
		}
	}
	return a.materialise(e)
}

// CountDownloadedBlocks returns how many of e's content blocks are held
// locally. It never waits for peers.
func (a *Archive) CountDownloadedBlocks(e Entry) uint64 {
	c := a.contentFeed()
	if c == nil || e.Blocks() == 0 {
		return 0
	}
	return c.CountRange(e.Content.BlockOffset, e.Content.BlockEnd())
}

// IsEntryDownloaded reports whether every content block of e is held
// locally.
func (a *Archive) IsEntryDownloaded(e Entry) bool {
	if e.Blocks() == 0 {
		return true
	}
	return a.CountDownloadedBlocks(e) == e.Blocks()
}

// materialise writes e's downloaded content to the file provider of a
// replica and restores its mtime. Writable archives already hold their
// files.
func (a *Archive) materialise(e Entry) (err error) {
	if a.files == nil || a.writable || e.IsDir() {
		return nil
	}
	dst, err := a.files(e.Name)
	if err != nil {
		return fmt.Errorf("drive: open %s: %w", e.Name, err)
	}
	defer func() {
		err = errors.Join(err, dst.Close())
	}()

	c := a.contentFeed()
	var off int64
	for i := e.Content.BlockOffset; i < e.Content.BlockEnd(); i++ {
		block, err := c.Block(i)
		if err != nil {
			return mapError(err)
		}
		if _, err := dst.WriteAt(block, off); err != nil {
			return fmt.Errorf("drive: write %s: %w", e.Name, err)
		}
		off += int64(len(block))
	}
	if t, ok := dst.(storage.Timer); ok && !e.Mtime.IsZero() {
		if err := t.SetModTime(e.Mtime); err != nil {
			return fmt.Errorf("drive: set mtime %s: %w", e.Name, err)
		}
	}
	a.log().Debug("entry materialised", "name", e.Name, "bytes", off)
	return nil
}
