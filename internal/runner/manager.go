// Package runner hosts the Orchestrator's round loop across many
// concurrently running jobs (spec.md §4.6/§5: "hundreds of concurrent
// jobs"). Grounded on the teacher's internal/batch.Orchestrator.Run
// structure (candidate lookup, per-item bookkeeping, retry classification),
// generalized here from its sequential for-loop to a bounded-concurrency
// errgroup.Group so many jobs run their own round loop in parallel, plus a
// per-job cancellation registry and a crash-recovery sweep for jobs whose
// log stream has gone silent past the configured staleness threshold.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/genforge-dev/genforge/internal/config"
	"github.com/genforge-dev/genforge/internal/jobs"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/logstream"
	"github.com/genforge-dev/genforge/internal/orchestrator"
)

// ErrAlreadyRunning is returned by Submit when jobID already has a
// registered in-flight run.
var ErrAlreadyRunning = errors.New("runner: job already running")

// ErrNotRunning is returned by Cancel when jobID has no registered
// in-flight run to cancel.
var ErrNotRunning = errors.New("runner: job not running")

// runningJobStatuses are the statuses a job sits in between Submit and its
// terminal COMPLETED/FAILED transition (spec.md §4.7), the set ReapStale
// scans.
var runningJobStatuses = []jobs.Status{jobs.StatusPlanning, jobs.StatusCoding, jobs.StatusTesting}

// Manager hosts concurrent RunJob executions against a single shared
// Orchestrator. It does not itself drive round logic; it owns lifecycle
// concerns the Orchestrator has no business knowing about: how many jobs
// may run at once, how to cancel one externally, and how to notice one that
// died without updating its own status (e.g. a process restart mid-job).
type Manager struct {
	orch     *orchestrator.Orchestrator
	jobStore jobs.Store
	logs     *logstream.Stream
	logger   log.Logger

	group errgroup.Group

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithLogger sets a logger for manager-level messages (job started,
// finished, reaped).
func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithConcurrency bounds how many jobs may run their round loop at once. If
// not supplied, New uses config.GetMaxConcurrentJobs.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.group.SetLimit(n) }
}

// New creates a Manager driving orch, bounded by config.GetMaxConcurrentJobs
// unless overridden by WithConcurrency.
func New(orch *orchestrator.Orchestrator, jobStore jobs.Store, logs *logstream.Stream, opts ...Option) *Manager {
	m := &Manager{
		orch:     orch,
		jobStore: jobStore,
		logs:     logs,
		logger:   log.NewNoop(),
		cancels:  make(map[string]context.CancelFunc),
	}
	m.group.SetLimit(config.GetMaxConcurrentJobs())
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit starts jobID's round loop on its own goroutine, gated by the
// Manager's concurrency limit, and registers a cancellation function for
// it. Submit returns as soon as the job is scheduled; it does not wait for
// the run to finish. Callers observe completion through the JobStore
// status or the LogStream, not through Submit's return.
func (m *Manager) Submit(jobID string) error {
	m.mu.Lock()
	if _, exists := m.cancels[jobID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, jobID)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancels[jobID] = cancel
	m.mu.Unlock()

	heartbeatCtx, stopHeartbeat := context.WithCancel(runCtx)
	go m.logs.StartHeartbeat(heartbeatCtx, jobID)

	// Go blocks the caller goroutine, not Submit itself, until a
	// concurrency slot frees up; run it from its own goroutine so Submit
	// stays non-blocking even when the manager is at capacity.
	go func() {
		m.group.Go(func() error {
			defer stopHeartbeat()
			defer cancel()
			defer m.unregister(jobID)

			jl := log.WithJob(m.logger, jobID)
			jl.Info("job started")
			err := m.orch.RunJob(runCtx, jobID)
			if err != nil {
				jl.Warn("job finished with error", "error", err)
			} else {
				jl.Info("job completed")
			}
			return err
		})
	}()
	return nil
}

func (m *Manager) unregister(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, jobID)
}

// Cancel requests that jobID's in-flight run stop. The Orchestrator
// observes ctx cancellation at its next blocking call and transitions the
// job to FAILED with ErrCancelled (spec.md §4.6).
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[jobID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, jobID)
	}
	cancel()
	return nil
}

// Wait blocks until every job Submit has scheduled finishes, returning the
// first non-nil error any of them returned. Intended for graceful shutdown.
func (m *Manager) Wait() error {
	return m.group.Wait()
}

// ReapStale scans every job in a running status whose log stream has gone
// silent longer than config.GetStaleJobThreshold and fails it with
// ErrOrchestratorRestart. This is the crash-recovery path (spec.md §4.6):
// a process restart leaves jobs stuck in PLANNING/CODING/TESTING with no
// goroutine left driving them. ReapStale runs only when a caller invokes
// it; nothing in this module calls it at startup or on a ticker.
func (m *Manager) ReapStale(ctx context.Context) error {
	threshold := config.GetStaleJobThreshold()
	now := time.Now().UTC()

	var reaped []string
	for _, status := range runningJobStatuses {
		running, err := m.jobStore.ListByStatus(status)
		if err != nil {
			return fmt.Errorf("runner: reap stale: list %s: %w", status, err)
		}
		for _, job := range running {
			if m.isLive(job.JobID) {
				continue
			}
			last := m.logs.LastActivity(job.JobID)
			if last.IsZero() {
				last = job.UpdatedAt
			}
			if now.Sub(last) < threshold {
				continue
			}
			if err := m.jobStore.UpdateStatus(job.JobID, jobs.StatusFailed, job.CurrentRound,
				orchestrator.ErrOrchestratorRestart.Error(), job.ErrorCount+1); err != nil {
				return fmt.Errorf("runner: reap stale: fail %s: %w", job.JobID, err)
			}
			log.WithJob(m.logger, job.JobID).Warn("reaped stale job", "status", status, "silent_for", now.Sub(last))
			reaped = append(reaped, job.JobID)
		}
	}
	if len(reaped) > 0 {
		m.logger.Info("stale job sweep complete", "reaped", len(reaped))
	}
	return nil
}

// isLive reports whether jobID has an active Submit-registered run, i.e.
// whether reaping it would race a goroutine this process already hosts.
func (m *Manager) isLive(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cancels[jobID]
	return ok
}
