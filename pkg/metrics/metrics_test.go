package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/prunetree/pkg/grouper"
	"github.com/autobrr/prunetree/pkg/merge"
	"github.com/autobrr/prunetree/pkg/prune"
	"github.com/autobrr/prunetree/pkg/scanner"
)

func TestManager_Observe(t *testing.T) {
	m := NewManager()

	m.Observe(prune.Summary{
		Scan:    scanner.Stats{Found: 10, Small: 3, Ignored: 2},
		Digests: grouper.Stats{Computed: 6, Failed: 1},
		Merge:   merge.Result{Linked: 4, Saved: 20000, Vanished: 1},
	}, nil)
	m.Observe(prune.Summary{
		DryRun: true,
		Scan:   scanner.Stats{Found: 5},
		Merge:  merge.Result{Linked: 2, Saved: 10000},
	}, errors.New("boom"))

	assert.InDelta(t, 15, testutil.ToFloat64(m.filesFound), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.filesSkipped.WithLabelValues("small")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.filesSkipped.WithLabelValues("ignored")), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(m.digests), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.links), 0, "dry runs do not link")
	assert.InDelta(t, 20000, testutil.ToFloat64(m.bytesSaved), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues("digest")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues("vanished")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rootFailures), 0)
}

func TestManager_WriteTextfile(t *testing.T) {
	m := NewManager()
	m.Observe(prune.Summary{Merge: merge.Result{Linked: 1, Saved: 5000}}, nil)
	m.Finish(time.Unix(1700000000, 0), false)

	path := filepath.Join(t.TempDir(), "prunetree.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "prunetree_bytes_saved_total 5000")
	assert.Contains(t, string(data), "prunetree_last_run_timestamp_seconds 1.7e+09")
	assert.Contains(t, string(data), "prunetree_last_run_dry_run 0")

	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
