package jobs

import "testing"

func TestNew_DefaultsMaxRounds(t *testing.T) {
	j := New("build a bookstore", "tenant-1", "user-1", 0)
	if j.MaxRounds != DefaultMaxRounds {
		t.Errorf("MaxRounds = %d, want %d", j.MaxRounds, DefaultMaxRounds)
	}
	if j.Status != StatusQueued {
		t.Errorf("Status = %q, want QUEUED", j.Status)
	}
	if j.JobID == "" {
		t.Error("expected a generated JobID")
	}
}

func TestCanTransition_LegalPath(t *testing.T) {
	path := []Status{StatusQueued, StatusPlanning, StatusCoding, StatusTesting, StatusCompleted}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransition_RejectsSkip(t *testing.T) {
	if CanTransition(StatusQueued, StatusCoding) {
		t.Error("QUEUED -> CODING should be illegal, it skips PLANNING")
	}
	if CanTransition(StatusCompleted, StatusTesting) {
		t.Error("COMPLETED is terminal, no transitions should be legal")
	}
}

func TestCanTransition_TestingAllowsRetestLoop(t *testing.T) {
	if !CanTransition(StatusTesting, StatusTesting) {
		t.Error("TESTING -> TESTING (another repair round) should be legal")
	}
}

func TestUpdateStatus_EnforcesDAG(t *testing.T) {
	s := NewMemoryStore()
	j := New("req", "t1", "u1", 3)
	if err := s.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateStatus(j.JobID, StatusCoding, 0, "", 0); err != ErrIllegalTransition && err == nil {
		t.Fatalf("expected illegal transition error, got nil")
	}

	if err := s.UpdateStatus(j.JobID, StatusPlanning, 0, "", 0); err != nil {
		t.Fatalf("QUEUED -> PLANNING: %v", err)
	}
	got, _ := s.Get(j.JobID)
	if got.Status != StatusPlanning {
		t.Errorf("Status = %q, want PLANNING", got.Status)
	}
	if got.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set on entering PLANNING")
	}
}

func TestUpdateStatus_SetsCompletedAtOnTerminal(t *testing.T) {
	s := NewMemoryStore()
	j := New("req", "t1", "u1", 3)
	_ = s.Create(j)
	_ = s.UpdateStatus(j.JobID, StatusPlanning, 0, "", 0)
	_ = s.UpdateStatus(j.JobID, StatusCoding, 0, "", 0)
	_ = s.UpdateStatus(j.JobID, StatusTesting, 1, "", 0)

	if err := s.UpdateStatus(j.JobID, StatusCompleted, 1, "", 0); err != nil {
		t.Fatalf("TESTING -> COMPLETED: %v", err)
	}
	got, _ := s.Get(j.JobID)
	if got.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on COMPLETED")
	}
}

func TestSetContract_LocksAfterLockContract(t *testing.T) {
	s := NewMemoryStore()
	j := New("req", "t1", "u1", 3)
	_ = s.Create(j)

	if err := s.SetContract(j.JobID, "openapi: 3.0", "schema.sql"); err != nil {
		t.Fatalf("SetContract: %v", err)
	}
	if err := s.LockContract(j.JobID); err != nil {
		t.Fatalf("LockContract: %v", err)
	}
	if err := s.SetContract(j.JobID, "changed", "changed"); err != ErrContractLocked {
		t.Errorf("expected ErrContractLocked after lock, got %v", err)
	}
}

func TestLockContract_Idempotent(t *testing.T) {
	s := NewMemoryStore()
	j := New("req", "t1", "u1", 3)
	_ = s.Create(j)
	_ = s.SetContract(j.JobID, "spec", "schema")

	if err := s.LockContract(j.JobID); err != nil {
		t.Fatalf("first LockContract: %v", err)
	}
	if err := s.LockContract(j.JobID); err != nil {
		t.Errorf("second LockContract should be a no-op, got %v", err)
	}
}

func TestListByStatus_FiltersCorrectly(t *testing.T) {
	s := NewMemoryStore()
	j1 := New("req1", "t1", "u1", 3)
	j2 := New("req2", "t1", "u1", 3)
	_ = s.Create(j1)
	_ = s.Create(j2)
	_ = s.UpdateStatus(j1.JobID, StatusPlanning, 0, "", 0)

	planning, err := s.ListByStatus(StatusPlanning)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(planning) != 1 || planning[0].JobID != j1.JobID {
		t.Errorf("expected only j1 in PLANNING, got %v", planning)
	}

	queued, _ := s.ListByStatus(StatusQueued)
	if len(queued) != 1 || queued[0].JobID != j2.JobID {
		t.Errorf("expected only j2 in QUEUED, got %v", queued)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIsRunningAndIsFinished(t *testing.T) {
	j := New("req", "t1", "u1", 3)
	j.Status = StatusCoding
	if !j.IsRunning() || j.IsFinished() {
		t.Error("CODING should be running, not finished")
	}
	j.Status = StatusFailed
	if j.IsRunning() || !j.IsFinished() {
		t.Error("FAILED should be finished, not running")
	}
}
