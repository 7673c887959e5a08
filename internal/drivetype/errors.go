package drivetype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrCorruptRecord is returned when a metadata block does not decode to
	// a valid record.
	ErrCorruptRecord = errors.New("drive: corrupt record")

	// ErrNotWritable is returned when appending to or finalizing an archive
	// opened from a key, or appending after Finalize.
	ErrNotWritable = errors.New("drive: archive not writable")

	// ErrTimeout is returned when a read could not be satisfied before the
	// caller's deadline.
	ErrTimeout = errors.New("drive: timeout")

	// ErrPeerUnavailable is returned when the last replication peer
	// disconnected while blocks were outstanding.
	ErrPeerUnavailable = errors.New("drive: peer unavailable")

	// ErrNotFound is returned when no entry matches the requested name.
	ErrNotFound = errors.New("drive: entry not found")

	// ErrNoFileSource is returned when appending a file to an archive that
	// was created without a file provider.
	ErrNoFileSource = errors.New("drive: no file provider configured")

	// ErrInvalidKey is returned when an archive key is not 32 bytes.
	ErrInvalidKey = errors.New("drive: invalid key")
)
