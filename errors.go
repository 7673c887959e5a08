package drive

import (
	"context"
	"errors"
	"fmt"

	"github.com/meigma/drive/feed"
	"github.com/meigma/drive/internal/drivetype"
)

// Sentinel errors re-exported from internal/drivetype.
var (
	// ErrCorruptRecord is returned when a metadata block does not decode to
	// a valid record.
	ErrCorruptRecord = drivetype.ErrCorruptRecord

	// ErrNotWritable is returned when appending to or finalizing an archive
	// opened from a key, or appending after Finalize.
	ErrNotWritable = drivetype.ErrNotWritable

	// ErrTimeout is returned when a read could not be satisfied before the
	// caller's deadline. It always wraps context.DeadlineExceeded as well.
	ErrTimeout = drivetype.ErrTimeout

	// ErrPeerUnavailable is returned when the last replication peer
	// disconnected while blocks were outstanding.
	ErrPeerUnavailable = drivetype.ErrPeerUnavailable

	// ErrNotFound is returned when no entry matches the requested name.
	ErrNotFound = drivetype.ErrNotFound

	// ErrNoFileSource is returned when appending a file to an archive that
	// was created without a file provider.
	ErrNoFileSource = drivetype.ErrNoFileSource

	// ErrInvalidKey is returned when an archive key is not 32 bytes.
	ErrInvalidKey = drivetype.ErrInvalidKey
)

// ErrClosed is returned by operations on a closed archive.
var ErrClosed = errors.New("drive: archive closed")

// errWriterClosed is returned by writes to a closed FileWriter.
var errWriterClosed = errors.New("drive: file writer closed")

// mapError translates feed and context failures into archive errors while
// keeping the original error in the chain.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, feed.ErrPeerUnavailable):
		return fmt.Errorf("%w: %w", ErrPeerUnavailable, err)
	case errors.Is(err, feed.ErrNotWritable):
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	case errors.Is(err, feed.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	default:
		return err
	}
}
