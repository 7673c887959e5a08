//go:build unix

// Package platform reads file attributes that differ between operating
// systems.
package platform

import (
	"io/fs"
	"syscall"
)

// Owner returns the owning user and group of info. ok is false when the
// platform does not expose ownership.
func Owner(info fs.FileInfo) (uid, gid uint32, ok bool) {
	if stat, isStat := info.Sys().(*syscall.Stat_t); isStat {
		return stat.Uid, stat.Gid, true
	}
	return 0, 0, false
}
