// Package prune runs the deduplication pipeline over one root directory.
package prune

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/digest"
	"github.com/autobrr/prunetree/pkg/grouper"
	"github.com/autobrr/prunetree/pkg/inodemap"
	"github.com/autobrr/prunetree/pkg/merge"
	"github.com/autobrr/prunetree/pkg/scanner"
	"github.com/autobrr/prunetree/pkg/snapshot"
)

// ErrNotDirectory is returned for a root that is missing or not a directory.
var ErrNotDirectory = errors.New("not a directory")

type Runner struct {
	cfg     *config.Configuration
	log     *logrus.Entry
	scanner *scanner.Scanner
	hasher  *digest.Hasher

	mergeOpts []merge.Option
	now       func() time.Time
}

type Option func(*Runner)

// WithMergeOptions passes options to the merge engine of every root.
func WithMergeOptions(opts ...merge.Option) Option {
	return func(r *Runner) {
		r.mergeOpts = append(r.mergeOpts, opts...)
	}
}

func New(cfg *config.Configuration, log *logrus.Entry, opts ...Option) (*Runner, error) {
	s, err := scanner.New(cfg, log)
	if err != nil {
		return nil, err
	}

	hasher, err := digest.New(cfg.Algorithm, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:     cfg,
		log:     log,
		scanner: s,
		hasher:  hasher,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Run scans root, digests every size class with more than one inode, largest first, and merges
// the duplicate sets found. All state is local to the call.
func (r *Runner) Run(ctx context.Context, root string) (summary Summary, err error) {
	start := r.now()
	summary = Summary{
		Root:   root,
		RunID:  uuid.NewString(),
		DryRun: r.cfg.DryRun,
	}
	defer func() {
		summary.Duration = r.now().Sub(start)
	}()

	if root, err = filepath.Abs(root); err != nil {
		return summary, fmt.Errorf("%s: %w: %w", root, ErrNotDirectory, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return summary, fmt.Errorf("%s: %w: %w", root, ErrNotDirectory, err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	log := r.log.WithField("run", summary.RunID[:8])

	log.Infof("Scanning %s", root)

	m, stats, err := r.scanner.Scan(ctx, root)
	summary.Scan = stats
	if err != nil {
		return summary, fmt.Errorf("scan %s: %w", root, err)
	}

	m.Prune()
	sizes := m.Sizes()
	summary.Sizes = len(sizes)
	log.Infof("%d sizes with more than one inode in %s", len(sizes), root)

	r.snapshot(log, m, &summary, root, snapshot.PhaseBefore)

	g := grouper.New(r.hasher, r.cfg.Workers, r.cfg.DigestRate, log)
	e := merge.New(r.cfg, root, log, r.mergeOpts...)

	for i, size := range sizes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		log.Infof("Digest calc for %3d inodes with size %9d bytes, step %3d out of %d",
			len(m.Bucket(size)), size, i+1, len(sizes))

		sets, dstats, err := g.Group(ctx, m, size)
		summary.Digests.Add(dstats)
		if err != nil {
			return summary, err
		}

		for _, set := range sets {
			log.Debugf("Merging %d inodes with digest %s", len(set.Groups), set.Digest.Short())

			res, err := e.Merge(ctx, m, set)
			summary.Merge.Add(res)
			summary.Sets++
			if err != nil {
				return summary, err
			}
		}

		if len(sets) == 0 {
			continue
		}

		if r.cfg.DryRun {
			log.Infof("Would save so far: %s", humanize.IBytes(uint64(summary.Merge.Saved)))
		} else {
			log.Infof("Saved so far: %s", humanize.IBytes(uint64(summary.Merge.Saved)))
		}
	}

	r.snapshot(log, m, &summary, root, snapshot.PhaseAfter)

	return summary, nil
}

/* Private */

// snapshot is best effort; failures are logged and the run continues.
func (r *Runner) snapshot(log *logrus.Entry, m *inodemap.Map, summary *Summary, root string, phase string) {
	if !r.cfg.Snapshot.Enabled {
		return
	}

	dir := r.cfg.Snapshot.Dir
	if dir == "" {
		dir = root
	}

	doc := snapshot.Build(m, summary.RunID, root, phase, r.now())
	path, err := snapshot.Write(doc, snapshot.Options{
		Dir:      dir,
		Format:   r.cfg.Snapshot.Format,
		Compress: r.cfg.Snapshot.Compress,
	})
	if err != nil {
		log.WithError(err).Warnf("Failed writing %s snapshot", phase)
		return
	}

	log.Debugf("Wrote %s snapshot of %d files: %s", phase, doc.Files, path)
	summary.Snapshots = append(summary.Snapshots, path)
}
