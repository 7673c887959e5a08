package drive

import "github.com/meigma/drive/internal/drivetype"

// Re-export types from internal/drivetype for public API.
type (
	// Entry is one decoded metadata record describing a file or directory.
	Entry = drivetype.Entry

	// Content locates a file's bytes in the content feed.
	Content = drivetype.Content

	// EntryType distinguishes files from directories.
	EntryType = drivetype.EntryType
)

// Re-export entry type constants.
const (
	TypeFile      = drivetype.TypeFile
	TypeDirectory = drivetype.TypeDirectory
)
