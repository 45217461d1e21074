//go:build unix

package hardlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLstat_HardLinksShareFileID(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("content"), 0o644))
	require.NoError(t, os.Link(a, b))

	ia, err := Lstat(a)
	require.NoError(t, err)
	ib, err := Lstat(b)
	require.NoError(t, err)

	assert.True(t, ia.ID.Equal(ib.ID))
	assert.Equal(t, uint64(2), ia.Nlink)
	assert.Equal(t, int64(7), ia.Size)
	assert.True(t, ia.IsRegular())
}

func TestLstat_DoesNotFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.WriteFile(target, []byte("content"), 0o644))
	require.NoError(t, os.Symlink(target, link))

	info, err := Lstat(link)
	require.NoError(t, err)
	assert.False(t, info.IsRegular())
	assert.NotZero(t, info.Mode&os.ModeSymlink)

	dirInfo, err := Lstat(dir)
	require.NoError(t, err)
	assert.True(t, dirInfo.Mode.IsDir())
}

func TestLstat_Missing(t *testing.T) {
	_, err := Lstat(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromFileInfo_MatchesLstat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	fi, err := os.Lstat(path)
	require.NoError(t, err)

	fromInfo, err := FromFileInfo(fi)
	require.NoError(t, err)
	fromStat, err := Lstat(path)
	require.NoError(t, err)

	assert.Equal(t, fromStat.ID, fromInfo.ID)
	assert.Equal(t, fromStat.Size, fromInfo.Size)
	assert.Equal(t, fromStat.Mode.Type(), fromInfo.Mode.Type())
}

func TestFileID(t *testing.T) {
	id := FileID{Device: 1, Inode: 42}
	assert.Equal(t, "1:42", id.String())
	assert.True(t, id.Equal(FileID{Device: 1, Inode: 42}))
	assert.False(t, id.Equal(FileID{Device: 2, Inode: 42}))
	assert.False(t, id.IsZero())
	assert.True(t, FileID{}.IsZero())
}

func TestTempName(t *testing.T) {
	a := TempName("/data/movie.mkv")
	b := TempName("/data/movie.mkv")

	assert.NotEqual(t, a, b)
	assert.True(t, IsTemp(a))

	orig, ok := Original(a)
	require.True(t, ok)
	assert.Equal(t, "/data/movie.mkv", orig)
}

func TestIsTemp(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/a.bin.prunetree-0a1b2c3d", true},
		{"/data/a.prunetree-0a1b2c3d.bin", false},
		{"/data/a.bin.prunetree-0A1B2C3D", false},
		{"/data/a.bin.prunetree-0a1b2c", false},
		{"/data/a.bin_prune", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTemp(tt.path))
		})
	}

	_, ok := Original("/data/a.bin")
	assert.False(t, ok)
}
