// Package metrics exports run counters for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autobrr/prunetree/pkg/prune"
)

const namespace = "prunetree"

type Manager struct {
	registry *prometheus.Registry

	filesFound    prometheus.Counter
	filesSkipped  *prometheus.CounterVec
	digests       prometheus.Counter
	links         prometheus.Counter
	failures      *prometheus.CounterVec
	bytesSaved    prometheus.Counter
	rootFailures  prometheus.Counter
	lastRun       prometheus.Gauge
	lastRunDryRun prometheus.Gauge
}

func NewManager() *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),
		filesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_found_total",
			Help:      "Files recorded as dedup candidates",
		}),
		filesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Files left out of the run, by reason",
		}, []string{"reason"}),
		digests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_total",
			Help:      "Content digests computed",
		}),
		links: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Paths relinked onto a reference inode",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Recoverable failures, by kind",
		}, []string{"kind"}),
		bytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_saved_total",
			Help:      "Bytes reclaimed by relinking",
		}),
		rootFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "root_failures_total",
			Help:      "Roots that aborted",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		lastRunDryRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_dry_run",
			Help:      "1 if the last run was a dry run",
		}),
	}

	m.registry.MustRegister(
		m.filesFound,
		m.filesSkipped,
		m.digests,
		m.links,
		m.failures,
		m.bytesSaved,
		m.rootFailures,
		m.lastRun,
		m.lastRunDryRun,
	)

	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Observe adds the outcome of one root. Links and savings are not counted for dry runs.
func (m *Manager) Observe(s prune.Summary, err error) {
	if err != nil {
		m.rootFailures.Inc()
	}

	m.filesFound.Add(float64(s.Scan.Found))
	for reason, n := range s.Scan.Skipped() {
		m.filesSkipped.WithLabelValues(reason).Add(float64(n))
	}

	m.digests.Add(float64(s.Digests.Computed))
	m.failures.WithLabelValues("digest").Add(float64(s.Digests.Failed))
	for kind, n := range s.Merge.Failures() {
		m.failures.WithLabelValues(kind).Add(float64(n))
	}

	if !s.DryRun {
		m.links.Add(float64(s.Merge.Linked))
		m.bytesSaved.Add(float64(s.Merge.Saved))
	}
}

// Finish stamps the end of the run.
func (m *Manager) Finish(now time.Time, dryRun bool) {
	m.lastRun.Set(float64(now.Unix()))
	if dryRun {
		m.lastRunDryRun.Set(1)
	} else {
		m.lastRunDryRun.Set(0)
	}
}

// WriteTextfile writes the registry atomically for the textfile collector.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
