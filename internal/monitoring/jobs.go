package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/zenebedagim/dental-clinic-sub002/pkg/metrics"
)

// JobSummary describes the recent history of one background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// JobTracker records background job outcomes for health reporting and metrics.
type JobTracker struct {
	mu   sync.Mutex
	now  func() time.Time
	jobs map[string]*JobSummary
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{now: time.Now, jobs: make(map[string]*JobSummary)}
}

// Record stores the result of one run of job.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()
	metrics.MaintenanceDuration.WithLabelValues(job).Observe(duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}
	now := t.now()
	entry.LastStatus = result
	entry.LastRunAt = now
	entry.LastDuration = duration
	entry.TotalRuns++
	if err != nil {
		entry.LastError = err.Error()
		entry.ConsecutiveFailures++
		return
	}
	entry.LastError = ""
	entry.ConsecutiveFailures = 0
	entry.LastSuccessAt = now
}

// Snapshot returns a copy of every job summary ordered by job name.
func (t *JobTracker) Snapshot() []JobSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, entry := range t.jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
