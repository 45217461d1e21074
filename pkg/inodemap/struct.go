package inodemap

import (
	"github.com/autobrr/prunetree/pkg/digest"
	"github.com/autobrr/prunetree/pkg/hardlink"
)

// GroupID indexes the arena of inode groups held by a Map.
type GroupID int

// Key is the (size, inode) coordinate a path is recorded under.
type Key struct {
	Size int64
	File hardlink.FileID
}

// InodeGroup is every observed path sharing one inode at one size. The size and inode are
// scan-time observations and must be re-checked before any mutation.
type InodeGroup struct {
	id        GroupID
	size      int64
	file      hardlink.FileID
	paths     []string
	digest    digest.Sum
	hasDigest bool
}

// Map is the size -> inode -> paths grouping built for one root.
type Map struct {
	groups   []*InodeGroup
	index    map[Key]GroupID
	sizes    map[int64][]GroupID
	files    int
	estimate int64
}
