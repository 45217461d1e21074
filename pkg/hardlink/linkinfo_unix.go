//go:build unix

package hardlink

import (
	"fmt"
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// Lstat returns link information for path without following symlinks.
func Lstat(path string) (Info, error) {
	var stat unix.Stat_t
	if err := unix.Lstat(path, &stat); err != nil {
		return Info{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}

	return Info{
		ID: FileID{
			Device: uint64(stat.Dev), //nolint:unconvert // Dev is int32 on darwin
			Inode:  uint64(stat.Ino), //nolint:unconvert
		},
		Nlink: uint64(stat.Nlink), //nolint:unconvert // Nlink is uint16 on darwin
		Size:  stat.Size,
		Mode:  fileMode(uint32(stat.Mode)), //nolint:unconvert
	}, nil
}

// FromFileInfo extracts link information from an lstat result without another syscall.
func FromFileInfo(fi fs.FileInfo) (Info, error) {
	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || stat == nil {
		return Info{}, fmt.Errorf("%s: %w", fi.Name(), ErrUnsupported)
	}

	return Info{
		ID: FileID{
			Device: uint64(stat.Dev), //nolint:unconvert
			Inode:  uint64(stat.Ino), //nolint:unconvert
		},
		Nlink: uint64(stat.Nlink), //nolint:unconvert
		Size:  fi.Size(),
		Mode:  fi.Mode(),
	}, nil
}

func fileMode(mode uint32) fs.FileMode {
	perm := fs.FileMode(mode & 0o777)

	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return perm
	case unix.S_IFDIR:
		return perm | fs.ModeDir
	case unix.S_IFLNK:
		return perm | fs.ModeSymlink
	case unix.S_IFIFO:
		return perm | fs.ModeNamedPipe
	case unix.S_IFSOCK:
		return perm | fs.ModeSocket
	case unix.S_IFCHR:
		return perm | fs.ModeDevice | fs.ModeCharDevice
	case unix.S_IFBLK:
		return perm | fs.ModeDevice
	default:
		return perm | fs.ModeIrregular
	}
}
