// Package scanner walks a root directory and groups the regular files below it by size and
// inode.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/expression"
	"github.com/autobrr/prunetree/pkg/hardlink"
	"github.com/autobrr/prunetree/pkg/inodemap"
	"github.com/autobrr/prunetree/pkg/paths"
	"github.com/autobrr/prunetree/pkg/regex"
)

// ErrMemoryCeiling aborts a scan whose grouping grew beyond the configured ceiling.
var ErrMemoryCeiling = errors.New("grouping exceeds memory ceiling")

const shortenAfter = 90

type Scanner struct {
	log *logrus.Entry

	minSize       int64
	maxSize       int64
	exclude       *regex.Pattern
	ignore        []expression.CompiledExpression
	updates       time.Duration
	walker        string
	workers       int
	maxMemory     int64
	oneFilesystem bool

	now func() time.Time
}

func New(cfg *config.Configuration, log *logrus.Entry) (*Scanner, error) {
	s := &Scanner{
		log:           log,
		minSize:       cfg.MinSize,
		maxSize:       cfg.MaxSize,
		updates:       time.Duration(cfg.Updates) * time.Second,
		walker:        cfg.Walker,
		workers:       cfg.Workers,
		maxMemory:     cfg.MaxMemory,
		oneFilesystem: cfg.OneFilesystem,
		now:           time.Now,
	}

	if cfg.Exclude != "" {
		p, err := regex.Compile(cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		s.exclude = p
	}

	ignore, err := expression.Compile(cfg.Filters.Ignore)
	if err != nil {
		return nil, fmt.Errorf("ignore filters: %w", err)
	}
	s.ignore = ignore

	return s, nil
}

// Scan walks root and returns the size -> inode grouping of every candidate file. The map is
// returned alongside ErrMemoryCeiling so callers can report how far the scan got.
func (s *Scanner) Scan(ctx context.Context, root string) (m *inodemap.Map, stats Stats, err error) {
	m = inodemap.New()

	// directories are pruned from walker goroutines when walking in parallel
	var excludedDirs, otherDeviceDirs atomic.Int64
	defer func() {
		stats.Excluded += int(excludedDirs.Load())
		stats.OtherDevice += int(otherDeviceDirs.Load())
	}()

	// exclusion patterns match against absolute paths
	if root, err = filepath.Abs(root); err != nil {
		return m, stats, fmt.Errorf("resolve root: %w", err)
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		return m, stats, fmt.Errorf("stat root: %w", err)
	}

	rootLink, err := hardlink.FromFileInfo(rootInfo)
	if err != nil {
		return m, stats, fmt.Errorf("root device: %w", err)
	}

	opts := paths.Options{
		SkipDir: func(path string, info fs.FileInfo) bool {
			if s.excluded(path) {
				excludedDirs.Add(1)
				return true
			}

			if s.oneFilesystem && info != nil {
				if li, err := hardlink.FromFileInfo(info); err == nil && li.ID.Device != rootLink.ID.Device {
					s.log.Debugf("Other device: %s", path)
					otherDeviceDirs.Add(1)
					return true
				}
			}

			return false
		},
	}

	lastUpdate := s.now()
	start := lastUpdate

	for e, err := range s.walk(ctx, root, opts) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m, stats, ctxErr
		}

		if err != nil {
			s.log.WithError(err).Warn("Failed reading entry, skipping...")
			stats.Errors++
			continue
		}

		if e.IsDir() {
			continue
		}

		if s.excluded(e.Path) {
			stats.Excluded++
			continue
		}

		mode := e.Info.Mode()
		if mode&fs.ModeSymlink != 0 {
			s.log.Tracef("Symlink: %s", e.Path)
			stats.Symlinks++
			continue
		}

		if !mode.IsRegular() {
			s.log.Tracef("Not a regular file: %s", e.Path)
			stats.Irregular++
			continue
		}

		li, err := hardlink.FromFileInfo(e.Info)
		if err != nil {
			s.log.WithError(err).Warnf("Failed reading inode of %s, skipping...", e.Path)
			stats.Errors++
			continue
		}

		if li.Size == 0 {
			s.log.Debugf("Zero byte file: %s", e.Path)
			stats.Empty++
			continue
		}

		if s.oneFilesystem && li.ID.Device != rootLink.ID.Device {
			s.log.Debugf("Other device: %s", e.Path)
			stats.OtherDevice++
			continue
		}

		if hardlink.IsTemp(e.Path) {
			s.log.Warnf("Found relink temporary %s, run recover to resolve it", e.Path)
			stats.Artifacts++
			continue
		}

		if s.ignored(e.Path, e.Info, li.Nlink) {
			stats.Ignored++
			continue
		}

		if now := s.now(); now.Sub(lastUpdate) > s.updates {
			lastUpdate = now
			s.log.Infof("Stat: files f=%d/s=%d/b=%d/T=%d, last file=%s",
				stats.Found, stats.Small, stats.Large, stats.Total(), Shorten(e.Rel))
		}

		if li.Size <= s.minSize {
			stats.Small++
			continue
		}

		if li.Size >= s.maxSize {
			stats.Large++
			continue
		}

		if _, created := m.Add(e.Path, li.Size, li.ID); !created {
			stats.Linked++
			stats.AlreadySaved += li.Size
		}
		stats.Found++

		if m.EstimatedBytes() > s.maxMemory {
			s.log.Errorf("Grouping of %d files is larger than %s, aborting root", m.Files(),
				humanize.Bytes(uint64(s.maxMemory)))
			return m, stats, fmt.Errorf("%w: %s after %d files", ErrMemoryCeiling,
				humanize.Bytes(uint64(m.EstimatedBytes())), m.Files())
		}
	}

	if err := ctx.Err(); err != nil {
		return m, stats, err
	}

	s.log.WithField("took", time.Since(start).Round(time.Millisecond)).Infof("Found %d files", stats.Found)
	s.log.Infof("Skipped %d (hard-) linked files, total size %s", stats.Linked, humanize.IBytes(uint64(stats.AlreadySaved)))
	s.log.Infof("Skipped %d small (<=%d byte) files", stats.Small, s.minSize)
	s.log.Infof("Skipped %d large (>=%d byte) files", stats.Large, s.maxSize)
	if stats.Ignored > 0 || stats.OtherDevice > 0 || stats.Artifacts > 0 {
		s.log.Infof("Skipped %d ignored, %d other device and %d relink temporary files",
			stats.Ignored, stats.OtherDevice, stats.Artifacts)
	}

	return m, stats, nil
}

// Shorten trims a path for progress output to its first 10 and last 90 characters.
func Shorten(path string) string {
	if len(path) <= shortenAfter {
		return path
	}
	return path[:10] + "..." + path[len(path)-shortenAfter:]
}

/* Private */

func (s *Scanner) walk(ctx context.Context, root string, opts paths.Options) iter.Seq2[paths.Entry, error] {
	if s.walker == config.WalkerParallel {
		return paths.Parallel(ctx, root, s.workers, opts)
	}
	return paths.Local(root, opts)
}

// excluded matches with a trailing slash so directory patterns such as /lost\+found/ also
// match the directory itself.
func (s *Scanner) excluded(path string) bool {
	match, err := regex.Check(path+"/", s.exclude)
	if err != nil {
		s.log.WithError(err).Warnf("Failed checking exclude pattern for %s", path)
		return false
	}

	if match {
		s.log.Debugf("Exclude: %s", path)
	}
	return match
}

func (s *Scanner) ignored(path string, info fs.FileInfo, nlink uint64) bool {
	if len(s.ignore) == 0 {
		return false
	}

	match, text, err := expression.CheckAnyMatch(expression.NewFileEnv(path, info, nlink, s.now()), s.ignore)
	if err != nil {
		s.log.WithError(err).Debugf("Failed evaluating ignore filters for %s", path)
		return false
	}

	if match {
		s.log.Debugf("Ignored %s: %s", path, text)
	}
	return match
}
