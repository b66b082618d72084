package runner

import (
	"context"
	"testing"
	"time"

	"github.com/genforge-dev/genforge/internal/artifacts"
	"github.com/genforge-dev/genforge/internal/jobs"
	"github.com/genforge-dev/genforge/internal/log"
	"github.com/genforge-dev/genforge/internal/logstream"
	"github.com/genforge-dev/genforge/internal/orchestrator"
	"github.com/genforge-dev/genforge/internal/orchestrator/testfakes"
	"github.com/genforge-dev/genforge/internal/ports"
	"github.com/genforge-dev/genforge/internal/validation"
)

func waitForStatus(t *testing.T, store jobs.Store, jobID string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(jobID)
		if err != nil {
			t.Fatalf("Get(%s): %v", jobID, err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func newTestManager(t *testing.T) (*Manager, jobs.Store) {
	t.Helper()
	jobStore := jobs.NewMemoryStore()
	artifactStore := artifacts.NewMemoryStore()
	validationStore := validation.NewMemoryStore()
	logs := logstream.New(time.Hour)

	architect := &testfakes.Architect{Plan: ports.PlanResult{
		ContractSpec: "contract",
		SchemaSpec:   "schema",
	}}
	backendCoder := &testfakes.Coder{Drafts: []ports.ArtifactDraft{
		{Path: "service.go", Content: "package service", GeneratedBy: artifacts.ByBackendCoder},
	}}
	frontendCoder := &testfakes.Coder{}
	coach := &testfakes.Coach{}
	sandbox := &testfakes.Sandbox{
		Validate_: func(call int, kind validation.Kind) (*validation.Report, error) {
			return validation.NewReport("job", 1, kind, true, "compile.sh", 0, "", "", 0, nil), nil
		},
	}

	orch := orchestrator.New(jobStore, artifactStore, validationStore, logs,
		architect, backendCoder, frontendCoder, coach, sandbox)

	m := New(orch, jobStore, logs)
	return m, jobStore
}

func TestManager_Submit_RunsJobToCompletion(t *testing.T) {
	m, jobStore := newTestManager(t)

	job := jobs.New("build a thing", "tenant-1", "user-1", 3)
	if err := jobStore.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Submit(job.JobID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitForStatus(t, jobStore, job.JobID, jobs.StatusCompleted)
}

func TestManager_Submit_RejectsDuplicate(t *testing.T) {
	m, _ := newTestManager(t)

	m.mu.Lock()
	m.cancels["job-1"] = func() {}
	m.mu.Unlock()

	if err := m.Submit("job-1"); err == nil {
		t.Errorf("expected ErrAlreadyRunning for a job already registered")
	}
}

func TestManager_Cancel_UnknownJob(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Cancel("missing"); err == nil {
		t.Errorf("expected ErrNotRunning")
	}
}

func TestManager_ReapStale_FailsSilentRunningJob(t *testing.T) {
	jobStore := jobs.NewMemoryStore()
	logs := logstream.New(time.Hour)

	job := jobs.New("build a thing", "tenant-1", "user-1", 3)
	if err := jobStore.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := jobStore.UpdateStatus(job.JobID, jobs.StatusPlanning, 0, "", 0); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	stale, err := jobStore.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stale.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	if err := jobStore.Create(stale); err != nil {
		t.Fatalf("Create(stale): %v", err)
	}

	m := &Manager{jobStore: jobStore, logs: logs, logger: log.NewNoop(), cancels: make(map[string]context.CancelFunc)}

	if err := m.ReapStale(context.Background()); err != nil {
		t.Fatalf("ReapStale: %v", err)
	}

	got, err := jobStore.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusFailed {
		t.Errorf("Status = %s, want FAILED", got.Status)
	}
}

func TestManager_ReapStale_SkipsLiveJob(t *testing.T) {
	jobStore := jobs.NewMemoryStore()
	logs := logstream.New(time.Hour)

	job := jobs.New("build a thing", "tenant-1", "user-1", 3)
	if err := jobStore.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := jobStore.UpdateStatus(job.JobID, jobs.StatusPlanning, 0, "", 0); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	m := &Manager{jobStore: jobStore, logs: logs, logger: log.NewNoop(), cancels: make(map[string]context.CancelFunc)}
	m.cancels[job.JobID] = func() {}

	if err := m.ReapStale(context.Background()); err != nil {
		t.Fatalf("ReapStale: %v", err)
	}

	got, err := jobStore.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusPlanning {
		t.Errorf("Status = %s, want unchanged PLANNING", got.Status)
	}
}
