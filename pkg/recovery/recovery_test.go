//go:build unix

package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/prune"
)

func newRecoverer(t *testing.T, dryRun bool) *Recoverer {
	t.Helper()

	cfg, err := config.Load(config.LoadOptions{SkipEnv: true})
	require.NoError(t, err)
	cfg.DryRun = dryRun

	log, _ := test.NewNullLogger()
	return New(cfg, logrus.NewEntry(log))
}

type layout struct {
	root    string
	restore string
	remove  string
	keep    string
	tmpOf   map[string]string
}

func newLayout(t *testing.T) *layout {
	t.Helper()

	l := &layout{root: t.TempDir(), tmpOf: map[string]string{}}
	l.restore = filepath.Join(l.root, "restore.bin")
	l.remove = filepath.Join(l.root, "sub", "remove.bin")
	l.keep = filepath.Join(l.root, "keep.bin")
	require.NoError(t, os.MkdirAll(filepath.Join(l.root, "sub"), 0o755))

	// interrupted before the link: only the temporary exists
	l.tmpOf[l.restore] = l.restore + ".prunetree-0000000a"
	require.NoError(t, os.WriteFile(l.tmpOf[l.restore], []byte("original"), 0o644))

	// interrupted after the link: both exist with equal size
	l.tmpOf[l.remove] = l.remove + ".prunetree-0000000b"
	require.NoError(t, os.WriteFile(l.tmpOf[l.remove], []byte("original"), 0o644))
	require.NoError(t, os.WriteFile(l.remove, []byte("relinked"), 0o644))

	// original was rewritten since
	l.tmpOf[l.keep] = l.keep + ".prunetree-0000000c"
	require.NoError(t, os.WriteFile(l.tmpOf[l.keep], []byte("original"), 0o644))
	require.NoError(t, os.WriteFile(l.keep, []byte("something else entirely"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(l.root, "unrelated.prunetree-xyz"), []byte("x"), 0o644))
	return l
}

func TestRecover(t *testing.T) {
	l := newLayout(t)

	res, err := newRecoverer(t, false).Recover(context.Background(), l.root)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, res.Findings, 3)

	data, err := os.ReadFile(l.restore)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.NoFileExists(t, l.tmpOf[l.restore])

	assert.NoFileExists(t, l.tmpOf[l.remove])
	data, err = os.ReadFile(l.remove)
	require.NoError(t, err)
	assert.Equal(t, "relinked", string(data))

	assert.FileExists(t, l.tmpOf[l.keep])
	assert.FileExists(t, filepath.Join(l.root, "unrelated.prunetree-xyz"))
}

func TestRecover_RelativeRoot(t *testing.T) {
	l := newLayout(t)
	t.Chdir(l.root)

	res, err := newRecoverer(t, false).Recover(context.Background(), ".")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Restored)
	for _, f := range res.Findings {
		assert.True(t, filepath.IsAbs(f.Temp), f.Temp)
	}
	assert.FileExists(t, l.restore)
}

func TestRecover_DryRun(t *testing.T) {
	l := newLayout(t)

	res, err := newRecoverer(t, true).Recover(context.Background(), l.root)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, 1, res.Removed)
	for _, tmp := range l.tmpOf {
		assert.FileExists(t, tmp)
	}
	assert.NoFileExists(t, l.restore)
}

func TestRecover_NotDirectory(t *testing.T) {
	_, err := newRecoverer(t, false).Recover(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, prune.ErrNotDirectory)
}

func TestRecover_Cancelled(t *testing.T) {
	l := newLayout(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRecoverer(t, false).Recover(ctx, l.root)
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, l.tmpOf[l.restore])
}
