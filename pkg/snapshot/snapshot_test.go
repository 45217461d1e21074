package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/prunetree/pkg/hardlink"
	"github.com/autobrr/prunetree/pkg/inodemap"
)

func sampleMap() *inodemap.Map {
	m := inodemap.New()
	ref, _ := m.Add("/data/a", 5000, hardlink.FileID{Device: 1, Inode: 10})
	m.Add("/data/a2", 5000, hardlink.FileID{Device: 1, Inode: 10})
	dup, _ := m.Add("/data/b", 5000, hardlink.FileID{Device: 1, Inode: 11})
	m.Add("/data/c", 9000, hardlink.FileID{Device: 1, Inode: 12})
	m.Add("/data/d", 9000, hardlink.FileID{Device: 1, Inode: 13})

	ref.SetDigest("aaaa")
	dup.SetDigest("aaaa")
	return m
}

func TestBuild(t *testing.T) {
	doc := Build(sampleMap(), "run-1", "/data", PhaseBefore, time.Now())

	assert.Equal(t, 5, doc.Files)
	assert.Equal(t, 5, doc.Count())
	require.Contains(t, doc.Sizes, int64(5000))
	assert.Equal(t, []string{"/data/a", "/data/a2"}, doc.Sizes[5000]["1:10"].Files)
	assert.Equal(t, "aaaa", doc.Sizes[5000]["1:10"].Digest)
	assert.Empty(t, doc.Sizes[9000]["1:12"].Digest)
}

func TestBuild_SkipsEmptyGroups(t *testing.T) {
	m := sampleMap()
	ref, _ := m.Lookup(5000, hardlink.FileID{Device: 1, Inode: 10})
	dup, _ := m.Lookup(5000, hardlink.FileID{Device: 1, Inode: 11})
	require.NoError(t, m.Move("/data/b", dup.ID(), ref.ID()))

	doc := Build(m, "run-1", "/data", PhaseAfter, time.Now())
	assert.NotContains(t, doc.Sizes[5000], "1:11")
	assert.Equal(t, 5, doc.Count(), "relinking never changes the file count")
}

func TestBuild_SameInodeOnTwoDevices(t *testing.T) {
	m := inodemap.New()
	m.Add("/a/x", 5000, hardlink.FileID{Device: 1, Inode: 7})
	m.Add("/b/y", 5000, hardlink.FileID{Device: 2, Inode: 7})

	doc := Build(m, "run-1", "/", PhaseBefore, time.Now())

	assert.Equal(t, 2, doc.Files)
	assert.Equal(t, 2, doc.Count())
	require.Len(t, doc.Sizes[5000], 2)
	assert.Equal(t, []string{"/a/x"}, doc.Sizes[5000]["1:7"].Files)
	assert.Equal(t, []string{"/b/y"}, doc.Sizes[5000]["2:7"].Files)
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	taken := time.Date(2025, 9, 27, 12, 30, 0, 0, time.UTC)

	for _, format := range []string{FormatYAML, FormatJSON, FormatCBOR} {
		for _, compress := range []bool{false, true} {
			name := format
			if compress {
				name += "_zstd"
			}

			t.Run(name, func(t *testing.T) {
				dir := t.TempDir()
				before := Build(sampleMap(), "run-1", "/data", PhaseBefore, taken)

				path, err := Write(before, Options{Dir: dir, Format: format, Compress: compress})
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(filepath.Base(path), "prunetree-before-"))
				assert.Equal(t, compress, strings.HasSuffix(path, ".zst"))

				loaded, err := Load(path)
				require.NoError(t, err)

				assert.Equal(t, before.RunID, loaded.RunID)
				assert.Equal(t, before.Phase, loaded.Phase)
				assert.Equal(t, before.Files, loaded.Files)
				assert.Equal(t, before.Count(), loaded.Count())
				assert.Equal(t, before.Sizes, loaded.Sizes)
				assert.True(t, before.Taken.Equal(loaded.Taken))

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Len(t, entries, 1, "no temporary left behind")
			})
		}
	}
}

func TestWrite_Errors(t *testing.T) {
	doc := Build(sampleMap(), "run-1", "/data", PhaseBefore, time.Now())

	_, err := Write(doc, Options{Dir: t.TempDir(), Format: "xml"})
	assert.Error(t, err)

	_, err = Write(doc, Options{Dir: filepath.Join(t.TempDir(), "missing"), Format: FormatYAML})
	assert.Error(t, err)
}

func TestLoad_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEncode_YAMLIsTreeStructured(t *testing.T) {
	var buf bytes.Buffer
	doc := Build(sampleMap(), "run-1", "/data", PhaseBefore, time.Now())
	require.NoError(t, Encode(&buf, doc, Options{Format: FormatYAML}))

	out := buf.String()
	assert.Contains(t, out, "sizes:")
	assert.Contains(t, out, "5000:")
	assert.Contains(t, out, "- /data/a2")
}
