package prune

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/autobrr/prunetree/pkg/grouper"
	"github.com/autobrr/prunetree/pkg/merge"
	"github.com/autobrr/prunetree/pkg/scanner"
)

// Summary is the outcome of a run over one root, or the total over several.
type Summary struct {
	Root   string
	RunID  string
	DryRun bool

	Scan    scanner.Stats
	Digests grouper.Stats
	Merge   merge.Result

	Sizes     int
	Sets      int
	Snapshots []string
	Duration  time.Duration
}

func (s *Summary) Add(other Summary) {
	s.DryRun = s.DryRun || other.DryRun
	s.Scan.Add(other.Scan)
	s.Digests.Add(other.Digests)
	s.Merge.Add(other.Merge)
	s.Sizes += other.Sizes
	s.Sets += other.Sets
	s.Snapshots = append(s.Snapshots, other.Snapshots...)
	s.Duration += other.Duration
}

// SavedLabel names the savings figure, which is only projected in dry-run.
func (s Summary) SavedLabel() string {
	if s.DryRun {
		return "would save"
	}
	return "saved"
}

// Log writes the user facing summary.
func (s Summary) Log(log *logrus.Entry, title string) {
	log.WithFields(logrus.Fields{
		"found":         s.Scan.Found,
		"small":         s.Scan.Small,
		"large":         s.Scan.Large,
		"total":         s.Scan.Total(),
		"already_saved": humanize.IBytes(uint64(s.Scan.AlreadySaved)),
		"took":          s.Duration.Round(time.Millisecond),
	}).Infof("%s: scanned %d files, %d already linked", title, s.Scan.Total(), s.Scan.Linked)

	log.WithFields(logrus.Fields{
		"digests":  s.Digests.Computed,
		"cached":   s.Digests.Cached,
		"sets":     s.Sets,
		"linked":   s.Merge.Linked,
		"vanished": s.Merge.Vanished,
		"changed":  s.Merge.Changed,
		"failed":   s.Merge.Failed + s.Digests.Failed,
	}).Infof("%s: %s %s", title, s.SavedLabel(), humanize.IBytes(uint64(s.Merge.Saved)))

	for _, artifact := range s.Merge.Artifacts {
		log.Errorf("%s: relink temporary left behind: %s", title, artifact)
	}
}
