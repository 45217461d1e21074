// Package snapshot persists the size -> inode -> paths grouping of a run for audit and
// recovery inspection.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/prunetree/pkg/inodemap"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatCBOR = "cbor"

	PhaseBefore = "before"
	PhaseAfter  = "after"

	zstdExt = ".zst"
)

type Document struct {
	RunID string                     `json:"run_id" yaml:"run_id" cbor:"run_id"`
	Root  string                     `json:"root" yaml:"root" cbor:"root"`
	Phase string                     `json:"phase" yaml:"phase" cbor:"phase"`
	Taken time.Time                  `json:"taken" yaml:"taken" cbor:"taken"`
	Files int                        `json:"files" yaml:"files" cbor:"files"`
	// Sizes maps a file size to its inode groups, keyed by "device:inode".
	Sizes map[int64]map[string]Entry `json:"sizes" yaml:"sizes" cbor:"sizes"`
}

type Entry struct {
	Files  []string `json:"files" yaml:"files" cbor:"files"`
	Digest string   `json:"digest,omitempty" yaml:"digest,omitempty" cbor:"digest,omitempty"`
}

type Options struct {
	Dir      string
	Format   string
	Compress bool
}

func SupportedFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatYAML, FormatJSON, FormatCBOR:
		return true
	default:
		return false
	}
}

// Build captures the current state of m. Empty inode groups are left out.
func Build(m *inodemap.Map, runID string, root string, phase string, now time.Time) *Document {
	doc := &Document{
		RunID: runID,
		Root:  root,
		Phase: phase,
		Taken: now.UTC(),
		Sizes: make(map[int64]map[string]Entry, m.Len()),
	}

	m.Each(func(size int64, g *inodemap.InodeGroup) {
		if g.Len() == 0 {
			return
		}

		inodes, ok := doc.Sizes[size]
		if !ok {
			inodes = make(map[string]Entry)
			doc.Sizes[size] = inodes
		}

		entry := Entry{Files: g.Paths()}
		if sum, ok := g.Digest(); ok {
			entry.Digest = sum.String()
		}

		inodes[g.FileID().String()] = entry
		doc.Files += len(entry.Files)
	})

	return doc
}

// FileName returns the name a snapshot of phase taken at t is written under.
func FileName(phase string, t time.Time, opts Options) string {
	name := fmt.Sprintf("prunetree-%s-%s.%s", phase, t.Format("20060102-150405"), strings.ToLower(opts.Format))
	if opts.Compress {
		name += zstdExt
	}
	return name
}

// Write encodes doc into opts.Dir and returns the written path. The file is written to a
// temporary name first and renamed into place.
func Write(doc *Document, opts Options) (path string, err error) {
	if !SupportedFormat(opts.Format) {
		return "", fmt.Errorf("unsupported snapshot format %q", opts.Format)
	}

	path = filepath.Join(opts.Dir, FileName(doc.Phase, doc.Taken.Local(), opts))
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", errors.Wrap(err, "create snapshot")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = Encode(f, doc, opts); err != nil {
		_ = f.Close()
		return "", err
	}

	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "close snapshot")
	}

	if err = os.Rename(tmp, path); err != nil {
		return "", errors.Wrap(err, "rename snapshot")
	}

	return path, nil
}

// Encode writes doc to w in the requested format.
func Encode(w io.Writer, doc *Document, opts Options) error {
	bw := bufio.NewWriter(w)
	out := io.Writer(bw)

	var zw *zstd.Encoder
	if opts.Compress {
		var err error
		zw, err = zstd.NewWriter(bw)
		if err != nil {
			return errors.Wrap(err, "init zstd encoder")
		}
		out = zw
	}

	if err := encode(out, doc, strings.ToLower(opts.Format)); err != nil {
		if zw != nil {
			_ = zw.Close()
		}
		return errors.Wrapf(err, "encode %s snapshot", opts.Format)
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "flush zstd encoder")
		}
	}

	return errors.Wrap(bw.Flush(), "flush snapshot")
}

// Load reads a snapshot, choosing the decoder from the file extension.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	defer f.Close()

	var in io.Reader = bufio.NewReader(f)

	name := path
	if strings.HasSuffix(name, zstdExt) {
		zr, err := zstd.NewReader(in)
		if err != nil {
			return nil, errors.Wrap(err, "init zstd decoder")
		}
		defer zr.Close()

		in = zr
		name = strings.TrimSuffix(name, zstdExt)
	}

	format := strings.TrimPrefix(filepath.Ext(name), ".")
	if !SupportedFormat(format) {
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}

	doc := &Document{}
	if err := decode(in, doc, format); err != nil {
		return nil, errors.Wrapf(err, "decode %s snapshot %s", format, path)
	}

	return doc, nil
}

// Count returns the number of paths held in the document.
func (d *Document) Count() int {
	n := 0
	for _, inodes := range d.Sizes {
		for _, entry := range inodes {
			n += len(entry.Files)
		}
	}
	return n
}

func encode(w io.Writer, doc *Document, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatCBOR:
		return cbor.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("unsupported snapshot format %q", format)
	}
}

func decode(r io.Reader, doc *Document, format string) error {
	switch format {
	case FormatYAML:
		return yaml.NewDecoder(r).Decode(doc)
	case FormatJSON:
		return json.NewDecoder(r).Decode(doc)
	case FormatCBOR:
		return cbor.NewDecoder(r).Decode(doc)
	default:
		return fmt.Errorf("unsupported snapshot format %q", format)
	}
}
