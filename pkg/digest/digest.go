// Package digest computes streamed content digests of files.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultAlgorithm is fast but not collision resistant.
	DefaultAlgorithm = "xxhash"
	// DefaultChunkSize is 118 KiB.
	DefaultChunkSize = 118 * 1024
)

// Sum is a hex encoded digest.
type Sum string

func (s Sum) String() string {
	return string(s)
}

// Short returns the first 12 characters, for log lines.
func (s Sum) Short() string {
	if len(s) <= 12 {
		return string(s)
	}
	return string(s[:12])
}

// Opener opens a file for reading.
type Opener func(name string) (io.ReadCloser, error)

var algorithms = map[string]func() hash.Hash{
	"xxhash": func() hash.Hash { return xxhash.New() },
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
	"blake3": func() hash.Hash { return blake3.New() },
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supported reports whether name is a known algorithm.
func Supported(name string) bool {
	_, ok := algorithms[strings.ToLower(name)]
	return ok
}

type Hasher struct {
	algorithm string
	chunkSize int
	newHash   func() hash.Hash
	open      Opener
}

type Option func(*Hasher)

// WithOpener replaces os.Open, mostly for tests that count opens.
func WithOpener(open Opener) Option {
	return func(h *Hasher) {
		h.open = open
	}
}

func New(algorithm string, chunkSize int, opts ...Option) (*Hasher, error) {
	algorithm = strings.ToLower(algorithm)
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	newHash, ok := algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported digest algorithm %q, supported: %s", algorithm,
			strings.Join(Algorithms(), ", "))
	}

	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}

	h := &Hasher{
		algorithm: algorithm,
		chunkSize: chunkSize,
		newHash:   newHash,
		open: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

func (h *Hasher) Algorithm() string {
	return h.algorithm
}

func (h *Hasher) ChunkSize() int {
	return h.chunkSize
}

// File digests the file at path.
func (h *Hasher) File(path string) (sum Sum, err error) {
	f, err := h.open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	sum, err = h.Reader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}

	return sum, nil
}

// Reader digests r until EOF, one chunk at a time.
func (h *Hasher) Reader(r io.Reader) (Sum, error) {
	hasher := h.newHash()
	buf := make([]byte, h.chunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return Sum(hex.EncodeToString(hasher.Sum(nil))), nil
}
