package validation

import "testing"

func TestNewReport_DerivesCounts(t *testing.T) {
	errs := []ParsedError{
		{File: "a.go", Severity: SeverityError, Message: "x"},
		{File: "a.go", Severity: SeverityWarning, Message: "y"},
		{File: "b.go", Severity: SeverityError, Message: "z"},
	}
	r := NewReport("job-1", 0, KindCompile, true, "go build", 1, "", "", 10, errs)
	if r.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", r.ErrorCount)
	}
	if r.WarningCount != 1 {
		t.Errorf("WarningCount = %d, want 1", r.WarningCount)
	}
}

func TestNewReport_PassedImpliesZeroErrors(t *testing.T) {
	errs := []ParsedError{{File: "a.go", Severity: SeverityError, Message: "x"}}
	r := NewReport("job-1", 0, KindCompile, true, "go build", 1, "", "", 10, errs)
	if r.Passed {
		t.Error("NewReport should force Passed=false when ErrorCount > 0")
	}
}

func TestReport_PassedWithNoErrors(t *testing.T) {
	r := NewReport("job-1", 0, KindUnitTest, true, "go test", 0, "ok", "", 5, nil)
	if !r.Passed || r.ErrorCount != 0 {
		t.Errorf("expected passed with zero errors, got Passed=%v ErrorCount=%d", r.Passed, r.ErrorCount)
	}
}

func TestFailingFiles_DedupedFirstSeenOrder(t *testing.T) {
	r := &Report{ParsedErrors: []ParsedError{
		{File: "b.go", Severity: SeverityError},
		{File: "a.go", Severity: SeverityError},
		{File: "b.go", Severity: SeverityError},
		{File: "c.go", Severity: SeverityWarning},
	}}
	got := r.FailingFiles()
	want := []string{"b.go", "a.go"}
	if len(got) != len(want) {
		t.Fatalf("FailingFiles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FailingFiles()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryStore_AppendOnlyAndListOrder(t *testing.T) {
	s := NewMemoryStore()
	r1 := NewReport("job-1", 0, KindCompile, false, "", 1, "", "", 0, nil)
	r2 := NewReport("job-1", 0, KindCompile, true, "", 0, "", "", 0, nil)
	if err := s.Append(r1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(r2); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.ListByJob("job-1")
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(got) != 2 || got[0] != r1 || got[1] != r2 {
		t.Errorf("ListByJob order wrong: %+v", got)
	}
}

func TestMemoryStore_AppendNilReport(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Append(nil); err == nil {
		t.Error("expected error appending nil report")
	}
}
