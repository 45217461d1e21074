// Package grouper splits a size class into sets of inodes holding identical content.
package grouper

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/prunetree/pkg/digest"
	"github.com/autobrr/prunetree/pkg/inodemap"
)

// MergeSet is a group of two or more inodes of one size whose content digests are equal.
type MergeSet struct {
	Size   int64
	Digest digest.Sum
	Groups []*inodemap.InodeGroup
}

// Paths returns the number of paths across the set.
func (s MergeSet) Paths() int {
	n := 0
	for _, g := range s.Groups {
		n += g.Len()
	}
	return n
}

type Stats struct {
	Computed int
	Cached   int
	Failed   int
}

func (s *Stats) Add(other Stats) {
	s.Computed += other.Computed
	s.Cached += other.Cached
	s.Failed += other.Failed
}

type Grouper struct {
	log     *logrus.Entry
	hasher  *digest.Hasher
	workers int
	limiter ratelimit.Limiter

	mu sync.Mutex
}

// New returns a grouper digesting on up to workers goroutines and at most rate files per
// second. A rate of zero is unlimited.
func New(hasher *digest.Hasher, workers int, rate int, log *logrus.Entry) *Grouper {
	if workers < 1 {
		workers = 1
	}

	limiter := ratelimit.NewUnlimited()
	if rate > 0 {
		limiter = ratelimit.New(rate, ratelimit.WithoutSlack)
	}

	return &Grouper{
		log:     log,
		hasher:  hasher,
		workers: workers,
		limiter: limiter,
	}
}

// Group digests every inode of the size class, reusing cached digests, and returns the digest
// classes holding more than one inode ordered by digest. Inodes that fail to digest are left
// out for this run. The only error returned is the cancellation of ctx.
func (g *Grouper) Group(ctx context.Context, m *inodemap.Map, size int64) ([]MergeSet, Stats, error) {
	var stats Stats

	groups := make([]*inodemap.InodeGroup, 0)
	for _, ig := range m.Bucket(size) {
		if ig.Len() > 0 {
			groups = append(groups, ig)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for _, ig := range groups {
		if _, ok := ig.Digest(); ok {
			stats.Cached++
			continue
		}

		path, _ := ig.Representative()

		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			g.limiter.Take()

			sum, err := g.hasher.File(path)

			g.mu.Lock()
			defer g.mu.Unlock()

			if err != nil {
				g.log.WithError(err).Warnf("Failed digesting inode %s, skipping...", ig.FileID())
				stats.Failed++
				return nil
			}

			g.log.Tracef("Digest %s: %s", sum.Short(), path)
			ig.SetDigest(sum)
			stats.Computed++
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, stats, err
	}

	buckets := make(map[digest.Sum][]*inodemap.InodeGroup)
	for _, ig := range groups {
		sum, ok := ig.Digest()
		if !ok {
			continue
		}
		buckets[sum] = append(buckets[sum], ig)
	}

	inodemap.Reduce(buckets)

	sums := make([]digest.Sum, 0, len(buckets))
	for sum := range buckets {
		sums = append(sums, sum)
	}
	sort.Slice(sums, func(i, j int) bool {
		return sums[i] < sums[j]
	})

	sets := make([]MergeSet, 0, len(sums))
	for _, sum := range sums {
		sets = append(sets, MergeSet{
			Size:   size,
			Digest: sum,
			Groups: buckets[sum],
		})
	}

	g.log.Debugf("Digest check: %d duplicate sets found for size %d", len(sets), size)
	return sets, stats, nil
}
