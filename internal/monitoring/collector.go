// Package monitoring watches import-run history and raises alerts when
// imports fail or drift too often.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/store"
)

// MetricsSnapshot holds a point-in-time view of import health.
type MetricsSnapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsWarnings int     `json:"runs_warnings"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunsStale    int     `json:"runs_stale"`
	FailRate     float64 `json:"fail_rate"`
	WarningRate  float64 `json:"warning_rate"`
	AvgDurSecs   float64 `json:"avg_duration_secs"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Finished returns the number of runs that reached a terminal status.
func (s MetricsSnapshot) Finished() int {
	return s.RunsComplete + s.RunsWarnings + s.RunsFailed
}

// RunLister is the store method the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.ImportRun, error)
}

// Collector gathers metrics from the run history.
type Collector struct {
	runs       RunLister
	staleAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a metrics collector. Runs still running after
// staleAfter are counted as stale; zero disables the check.
func NewCollector(runs RunLister, staleAfter time.Duration) *Collector {
	return &Collector{runs: runs, staleAfter: staleAfter, now: func() time.Time { return time.Now().UTC() }}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{LookbackHours: lookbackHours, CollectedAt: now}

	filter := store.RunFilter{Limit: 10000}
	if lookbackHours > 0 {
		filter.CreatedAfter = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}
	runs, err := c.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusWarnings:
			snap.RunsWarnings++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
			if c.staleAfter > 0 && now.Sub(r.CreatedAt) > c.staleAfter {
				snap.RunsStale++
			}
			continue
		}
		totalDur += r.UpdatedAt.Sub(r.CreatedAt)
		durCount++
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
		snap.WarningRate = float64(snap.RunsWarnings) / float64(finished)
	}
	if durCount > 0 {
		snap.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return snap, nil
}
