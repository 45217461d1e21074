package hardlink

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrUnsupported is returned on platforms without inode numbers.
var ErrUnsupported = errors.New("hard link information not supported on this platform")

// FileID represents a unique file identifier (device ID + inode number).
type FileID struct {
	Device uint64 // Device ID
	Inode  uint64 // Inode number
}

// String returns a string representation of the FileID.
func (f FileID) String() string {
	return fmt.Sprintf("%d:%d", f.Device, f.Inode)
}

// Equal checks if two FileIDs are equal.
func (f FileID) Equal(other FileID) bool {
	return f.Device == other.Device && f.Inode == other.Inode
}

// IsZero returns true if the FileID is the zero value.
func (f FileID) IsZero() bool {
	return f.Device == 0 && f.Inode == 0
}

// Info is what the scanner and the merge engine need to know about a path.
type Info struct {
	ID    FileID
	Nlink uint64
	Size  int64
	Mode  fs.FileMode
}

// IsRegular reports whether the path was a regular file when observed.
func (i Info) IsRegular() bool {
	return i.Mode.IsRegular()
}
