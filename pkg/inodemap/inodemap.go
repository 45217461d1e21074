package inodemap

import (
	"fmt"
	"slices"
	"sort"

	"github.com/autobrr/prunetree/pkg/digest"
	"github.com/autobrr/prunetree/pkg/hardlink"
)

// rough per record overheads used for the memory ceiling estimate
const (
	groupOverhead = 160
	pathOverhead  = 32
	sizeOverhead  = 64
)

func New() *Map {
	return &Map{
		index: make(map[Key]GroupID),
		sizes: make(map[int64][]GroupID),
	}
}

// Add records path under its (size, inode) coordinates, creating the size bucket and inode
// group on demand. created reports whether a new inode group was made.
func (m *Map) Add(path string, size int64, id hardlink.FileID) (g *InodeGroup, created bool) {
	key := Key{Size: size, File: id}

	if gid, ok := m.index[key]; ok {
		g = m.groups[gid]
		g.paths = append(g.paths, path)
		m.files++
		m.estimate += int64(len(path) + pathOverhead)
		return g, false
	}

	gid := GroupID(len(m.groups))
	g = &InodeGroup{
		id:    gid,
		size:  size,
		file:  id,
		paths: []string{path},
	}

	if _, ok := m.sizes[size]; !ok {
		m.estimate += sizeOverhead
	}

	m.groups = append(m.groups, g)
	m.index[key] = gid
	m.sizes[size] = append(m.sizes[size], gid)
	m.files++
	m.estimate += int64(groupOverhead + len(path) + pathOverhead)

	return g, true
}

// Group returns the group with id, or nil.
func (m *Map) Group(id GroupID) *InodeGroup {
	if id < 0 || int(id) >= len(m.groups) {
		return nil
	}
	return m.groups[id]
}

// Lookup returns the group stored under (size, id).
func (m *Map) Lookup(size int64, id hardlink.FileID) (*InodeGroup, bool) {
	gid, ok := m.index[Key{Size: size, File: id}]
	if !ok {
		return nil, false
	}
	return m.groups[gid], true
}

// Bucket returns the inode groups observed at size, in insertion order.
func (m *Map) Bucket(size int64) []*InodeGroup {
	ids := m.sizes[size]
	groups := make([]*InodeGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, m.groups[id])
	}
	return groups
}

// Sizes returns every size class, largest first.
func (m *Map) Sizes() []int64 {
	sizes := make([]int64, 0, len(m.sizes))
	for size := range m.sizes {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool {
		return sizes[i] > sizes[j]
	})
	return sizes
}

// Prune drops every size class holding a single inode group and returns how many went.
func (m *Map) Prune() int {
	var dropped []GroupID
	for _, ids := range m.sizes {
		if len(ids) == 1 {
			dropped = append(dropped, ids[0])
		}
	}

	removed := Reduce(m.sizes)

	for _, id := range dropped {
		g := m.groups[id]
		delete(m.index, Key{Size: g.size, File: g.file})
		m.files -= len(g.paths)
		g.paths = nil
	}

	return removed
}

// Move transfers path from one group to another of the same size. Both the size bucket view
// and any merge set holding the groups observe the change, since they share the records.
func (m *Map) Move(path string, from GroupID, to GroupID) error {
	src, dst := m.Group(from), m.Group(to)
	if src == nil || dst == nil {
		return fmt.Errorf("move %s: unknown group %d -> %d", path, from, to)
	}

	if src.size != dst.size {
		return fmt.Errorf("move %s: size mismatch %d != %d", path, src.size, dst.size)
	}

	idx := slices.Index(src.paths, path)
	if idx < 0 {
		return fmt.Errorf("move %s: not a member of group %d", path, from)
	}

	src.paths = slices.Delete(src.paths, idx, idx+1)
	dst.paths = append(dst.paths, path)
	return nil
}

// Len returns the number of size classes.
func (m *Map) Len() int {
	return len(m.sizes)
}

// Files returns the number of paths held across all size classes.
func (m *Map) Files() int {
	return m.files
}

// Groups returns the number of non-empty inode groups across all size classes.
func (m *Map) Groups() int {
	n := 0
	for _, ids := range m.sizes {
		for _, id := range ids {
			if len(m.groups[id].paths) > 0 {
				n++
			}
		}
	}
	return n
}

// EstimatedBytes is a rough figure of the memory held by the map.
func (m *Map) EstimatedBytes() int64 {
	return m.estimate
}

// Each calls fn for every size class, largest first, and every group in it.
func (m *Map) Each(fn func(size int64, g *InodeGroup)) {
	for _, size := range m.Sizes() {
		for _, id := range m.sizes[size] {
			fn(size, m.groups[id])
		}
	}
}

/* InodeGroup */

func (g *InodeGroup) ID() GroupID {
	return g.id
}

func (g *InodeGroup) Size() int64 {
	return g.size
}

func (g *InodeGroup) FileID() hardlink.FileID {
	return g.file
}

// Paths returns a copy of the member paths.
func (g *InodeGroup) Paths() []string {
	return slices.Clone(g.paths)
}

func (g *InodeGroup) Len() int {
	return len(g.paths)
}

// Representative returns the path used for digesting and as a link target.
func (g *InodeGroup) Representative() (string, bool) {
	if len(g.paths) == 0 {
		return "", false
	}
	return g.paths[0], true
}

// Digest returns the cached digest, if computed.
func (g *InodeGroup) Digest() (digest.Sum, bool) {
	return g.digest, g.hasDigest
}

func (g *InodeGroup) SetDigest(sum digest.Sum) {
	g.digest = sum
	g.hasDigest = true
}
