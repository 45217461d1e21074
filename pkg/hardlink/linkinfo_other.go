//go:build !unix

package hardlink

import (
	"fmt"
	"io/fs"
)

func Lstat(path string) (Info, error) {
	return Info{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

func FromFileInfo(fi fs.FileInfo) (Info, error) {
	return Info{}, fmt.Errorf("%s: %w", fi.Name(), ErrUnsupported)
}
