package drivetype

import (
	"io/fs"
	"time"
)

// EntryType distinguishes files from directories.
type EntryType uint8

const (
	TypeFile EntryType = iota + 1
	TypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Content locates a file's bytes in the content feed as a half-open block
// range [BlockOffset, BlockOffset+Blocks) and the matching byte range
// [BytesOffset, BytesOffset+Bytes).
type Content struct {
	BlockOffset uint64
	BytesOffset uint64
	Blocks      uint64
	Bytes       uint64
}

// BlockEnd returns the index one past the last block of the range.
func (c Content) BlockEnd() uint64 {
	return c.BlockOffset + c.Blocks
}

// Entry is one decoded metadata record describing a file or directory.
// Content is nil for directories.
type Entry struct {
	Name    string
	Type    EntryType
	Mode    fs.FileMode
	UID     uint32
	GID     uint32
	Mtime   time.Time
	Ctime   time.Time
	Content *Content
}

// IsDir reports whether e describes a directory.
func (e Entry) IsDir() bool {
	return e.Type == TypeDirectory
}

// Blocks returns the number of content blocks e spans, zero for directories.
func (e Entry) Blocks() uint64 {
	if e.Content == nil {
		return 0
	}
	return e.Content.Blocks
}

// Size returns the content length in bytes, zero for directories.
func (e Entry) Size() uint64 {
	if e.Content == nil {
		return 0
	}
	return e.Content.Bytes
}
