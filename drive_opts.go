package drive

import (
	"log/slog"

	"github.com/meigma/drive/storage"
)

// Option configures a Drive.
type Option func(*Drive)

// WithStorage sets the provider that stores feed state (block data, hash
// trees and block indexes). The default keeps everything in memory.
func WithStorage(p storage.Provider) Option {
	return func(d *Drive) {
		d.storage = p
	}
}

// WithLogger sets the logger shared by archives of the drive.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Drive) {
		d.logger = logger
	}
}
