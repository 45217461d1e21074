// Package merge collapses sets of identical inodes onto a single reference inode with hard
// links.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	perrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/grouper"
	"github.com/autobrr/prunetree/pkg/hardlink"
	"github.com/autobrr/prunetree/pkg/inodemap"
)

const verifyBufferSize = 64 * 1024

type Engine struct {
	log    *logrus.Entry
	fs     FS
	root   string
	dryRun bool
	verify bool
}

type Option func(*Engine)

// WithFS replaces the operating system filesystem.
func WithFS(fsys FS) Option {
	return func(e *Engine) {
		e.fs = fsys
	}
}

func New(cfg *config.Configuration, root string, log *logrus.Entry, opts ...Option) *Engine {
	e := &Engine{
		log:    log,
		fs:     OS(),
		root:   root,
		dryRun: cfg.DryRun,
		verify: cfg.Verify,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Merge relinks every path of set onto its reference inode and moves the bookkeeping of each
// relinked path in m to the reference group. Per file and per set problems are logged and
// counted; the only error returned is the cancellation of ctx, which is checked between files.
func (e *Engine) Merge(ctx context.Context, m *inodemap.Map, set grouper.MergeSet) (Result, error) {
	var res Result

	ref := Reference(set.Groups)
	if ref == nil {
		return res, nil
	}

	refPath, ok := ref.Representative()
	if !ok {
		res.Abandoned++
		return res, nil
	}

	if err := e.validate(refPath, set.Size, ref.FileID()); err != nil {
		e.log.WithError(err).Warnf("Skipping pruning for size=%d as reference file %s is not usable anymore",
			set.Size, e.rel(refPath))
		res.Abandoned++
		return res, nil
	}

	e.log.Tracef("Following files are already hard linked: %v", ref.Paths())

	for _, g := range set.Groups {
		if g == ref {
			continue
		}

		for _, path := range g.Paths() {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			if err := e.validate(path, set.Size, g.FileID()); err != nil {
				switch {
				case errors.Is(err, fs.ErrNotExist):
					e.log.Warnf("Skipping %s as it is not found anymore", e.rel(path))
					res.Vanished++
				case errors.Is(err, errChanged):
					e.log.Warnf("Skipping %s as it has been changed: %v", e.rel(path), err)
					res.Changed++
				default:
					e.log.WithError(err).Warnf("Skipping %s, failed inspecting it", e.rel(path))
					res.Failed++
				}
				continue
			}

			if e.verify {
				same, err := e.sameContent(refPath, path)
				if err != nil {
					e.log.WithError(err).Warnf("Skipping %s, failed comparing it to %s", e.rel(path), e.rel(refPath))
					res.Failed++
					continue
				}
				if !same {
					e.log.Warnf("Skipping %s as its content differs from %s despite equal digests",
						e.rel(path), e.rel(refPath))
					res.Mismatched++
					continue
				}
			}

			if e.dryRun {
				e.log.Infof("Dry-run enabled, would create hard link: %s to file %s", e.rel(path), e.rel(refPath))
				res.Linked++
				res.Saved += set.Size
				continue
			}

			linked, artifact, err := e.relink(path, refPath)
			if artifact != "" {
				e.log.Errorf("Relink temporary %s was kept, run recover to resolve it", artifact)
				res.Artifacts = append(res.Artifacts, artifact)
			}
			if err != nil {
				e.log.WithError(err).Warnf("Failed linking %s to %s", e.rel(path), e.rel(refPath))
			}
			if !linked {
				res.Failed++
				continue
			}

			e.log.Infof("Created hard link: %s to file %s", e.rel(path), e.rel(refPath))

			if err := m.Move(path, g.ID(), ref.ID()); err != nil {
				e.log.WithError(err).Error("Failed updating grouping after relink")
			}

			res.Linked++
			res.Saved += set.Size
		}
	}

	return res, nil
}

// Reference returns the group with the most paths, the first one on a tie.
func Reference(groups []*inodemap.InodeGroup) *inodemap.InodeGroup {
	var ref *inodemap.InodeGroup
	for _, g := range groups {
		if ref == nil || g.Len() > ref.Len() {
			ref = g
		}
	}
	return ref
}

/* Private */

var errChanged = errors.New("changed since scan")

// validate checks path is still the regular file of size and id observed by the scan.
func (e *Engine) validate(path string, size int64, id hardlink.FileID) error {
	info, err := e.fs.Lstat(path)
	if err != nil {
		return err
	}

	switch {
	case !info.IsRegular():
		return fmt.Errorf("%w: no longer a regular file (%s)", errChanged, info.Mode.Type())
	case info.Size != size || !info.ID.Equal(id):
		return fmt.Errorf("%w: size=%d/%d inode=%s/%s", errChanged, info.Size, size, info.ID, id)
	}

	return nil
}

// relink parks path under a temporary name, links ref in its place and drops the temporary.
// artifact names a temporary that had to be kept.
func (e *Engine) relink(path string, ref string) (linked bool, artifact string, err error) {
	tmp := hardlink.TempName(path)

	if err := e.fs.Rename(path, tmp); err != nil {
		return false, "", perrors.Wrap(err, "park original")
	}

	if err := e.fs.Link(ref, path); err != nil {
		if rerr := e.fs.Rename(tmp, path); rerr != nil {
			return false, tmp, perrors.Wrapf(err, "link reference (restore failed: %v)", rerr)
		}
		return false, "", perrors.Wrap(err, "link reference")
	}

	if err := e.fs.Remove(tmp); err != nil {
		return true, tmp, perrors.Wrap(err, "remove temporary")
	}

	e.log.Debugf("Delete: %s", e.rel(path))
	return true, "", nil
}

func (e *Engine) sameContent(a string, b string) (bool, error) {
	fa, err := e.fs.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()

	fb, err := e.fs.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, verifyBufferSize)
	bufB := make([]byte, verifyBufferSize)

	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)

		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}

		doneA := errA == io.EOF || errors.Is(errA, io.ErrUnexpectedEOF)
		doneB := errB == io.EOF || errors.Is(errB, io.ErrUnexpectedEOF)

		switch {
		case errA != nil && !doneA:
			return false, errA
		case errB != nil && !doneB:
			return false, errB
		case doneA || doneB:
			return doneA && doneB, nil
		}
	}
}

func (e *Engine) rel(path string) string {
	if e.root == "" {
		return path
	}

	r, err := filepath.Rel(e.root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return path
	}
	return r
}
