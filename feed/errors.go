package feed

import "errors"

// Sentinel errors returned by feeds.
var (
	// ErrNotWritable is returned when appending to a feed without a local
	// writer or after it has been sealed.
	ErrNotWritable = errors.New("feed: not writable")

	// ErrVerification is returned when a block or proof does not verify
	// against the feed key.
	ErrVerification = errors.New("feed: verification failed")

	// ErrPeerUnavailable is returned to waiters when the last peer that
	// could serve a missing block disconnects.
	ErrPeerUnavailable = errors.New("feed: peer unavailable")

	// ErrClosed is returned by operations on a closed feed.
	ErrClosed = errors.New("feed: closed")

	// ErrBlockMissing is returned when a block is not present locally.
	ErrBlockMissing = errors.New("feed: block not present")

	// ErrInvalidKey is returned when a key is not 32 bytes.
	ErrInvalidKey = errors.New("feed: invalid key")

	// ErrSigned is returned when sealing a signed feed; signed feeds stay
	// open-ended.
	ErrSigned = errors.New("feed: signed feeds cannot be sealed")
)
