package drive

import (
	"context"
	"fmt"

	"github.com/meigma/drive/internal/record"
)

// List returns entries in append order. Names appended more than once are
// listed once per append. An offset past the end yields an empty slice.
// A replica waits for peers to supply the metadata it lists.
func (a *Archive) List(ctx context.Context, opts ...ListOption) ([]Entry, error) {
	var cfg listConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.offset < 0 || cfg.limit < 0 {
		return nil, fmt.Errorf("drive: invalid list range offset=%d limit=%d", cfg.offset, cfg.limit)
	}
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	if err := a.update(ctx); err != nil {
		return nil, err
	}

	n := a.entryCount()
	start := uint64(cfg.offset)
	if start >= n {
		return []Entry{}, nil
	}
	end := n
	if cfg.limit > 0 && start+uint64(cfg.limit) < end {
		end = start + uint64(cfg.limit)
	}
	return a.entries(ctx, start, end)
}

// Get returns the most recent entry named name, or ErrNotFound.
func (a *Archive) Get(ctx context.Context, name string, opts ...GetOption) (Entry, error) {
	var cfg getConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}
	if err := a.ready(ctx); err != nil {
		return Entry{}, err
	}
	if err := a.update(ctx); err != nil {
		return Entry{}, err
	}

	n := a.entryCount()
	if err := a.metadata.Download(ctx, 1, n+1); err != nil {
		return Entry{}, mapError(err)
	}
	for i := n; i > 0; i-- {
		e, err := a.entry(ctx, i-1)
		if err != nil {
			return Entry{}, err
		}
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// entries decodes entries [start, end), fetching their blocks together.
func (a *Archive) entries(ctx context.Context, start, end uint64) ([]Entry, error) {
	if err := a.metadata.Download(ctx, start+1, end+1); err != nil {
		return nil, mapError(err)
	}
	out := make([]Entry, 0, end-start)
	for i := start; i < end; i++ {
		e, err := a.entry(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// entry decodes entry i, which lives in metadata block i+1.
func (a *Archive) entry(ctx context.Context, i uint64) (Entry, error) {
	block, err := a.metadata.Get(ctx, i+1)
	if err != nil {
		return Entry{}, mapError(err)
	}
	e, err := record.DecodeEntry(block)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", i, err)
	}
	return e, nil
}
