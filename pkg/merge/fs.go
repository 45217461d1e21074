package merge

import (
	"io"
	"os"

	"github.com/autobrr/prunetree/pkg/hardlink"
)

// FS is the set of filesystem calls a merge makes.
type FS interface {
	Lstat(path string) (hardlink.Info, error)
	Open(path string) (io.ReadCloser, error)
	Rename(oldpath string, newpath string) error
	Link(oldname string, newname string) error
	Remove(path string) error
}

type osFS struct{}

// OS returns the FS of the operating system.
func OS() FS {
	return osFS{}
}

func (osFS) Lstat(path string) (hardlink.Info, error) {
	return hardlink.Lstat(path)
}

func (osFS) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (osFS) Rename(oldpath string, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (osFS) Link(oldname string, newname string) error {
	return os.Link(oldname, newname)
}

func (osFS) Remove(path string) error {
	return os.Remove(path)
}
