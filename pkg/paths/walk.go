package paths

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
)

/* Structs */

type Entry struct {
	// Path is the full path, root joined with Rel.
	Path string
	// Rel is the slash separated path relative to the walked root.
	Rel  string
	Info fs.FileInfo
}

func (e Entry) IsDir() bool {
	return e.Info != nil && e.Info.IsDir()
}

type Options struct {
	// SkipDir is consulted with the full path of every directory; returning true prunes it
	// and the directory itself is not yielded.
	SkipDir func(path string, info fs.FileInfo) bool
}

/* Public */

// Local walks the directory tree of the operating system rooted at root.
func Local(root string, opts Options) iter.Seq2[Entry, error] {
	return Walk(os.DirFS(root), root, opts)
}

// Walk lazily yields every entry below "." of fsys in depth-first order, entries of one
// directory in lexical order. Symbolic links are yielded but never followed. root is only
// used to build Entry.Path. Errors reading a directory are yielded and the walk continues
// with its siblings.
func Walk(fsys fs.FS, root string, opts Options) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		type frame struct {
			entries []fs.DirEntry
			dir     string
			next    int
		}

		var stack []*frame

		push := func(dir string) bool {
			entries, err := fs.ReadDir(fsys, dir)
			if err != nil {
				return yield(Entry{Path: join(root, dir), Rel: dir}, fmt.Errorf("read dir %s: %w", join(root, dir), err))
			}
			stack = append(stack, &frame{entries: entries, dir: dir})
			return true
		}

		if !push(".") {
			return
		}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next >= len(top.entries) {
				stack = stack[:len(stack)-1]
				continue
			}

			d := top.entries[top.next]
			top.next++

			rel := path.Join(top.dir, d.Name())
			full := join(root, rel)

			info, err := d.Info()
			if err != nil {
				// entry vanished between readdir and lstat
				if !yield(Entry{Path: full, Rel: rel}, fmt.Errorf("stat %s: %w", full, err)) {
					return
				}
				continue
			}

			if d.IsDir() && opts.SkipDir != nil && opts.SkipDir(full, info) {
				continue
			}

			if !yield(Entry{Path: full, Rel: rel, Info: info}, nil) {
				return
			}

			if d.IsDir() && !push(rel) {
				return
			}
		}
	}
}

/* Private */

func join(root string, rel string) string {
	if root == "" {
		return rel
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}
