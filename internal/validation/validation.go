// Package validation models the structured result of one sandbox run
// (spec.md §3 ValidationReport / C4) and the parsed-error shape agents and
// the orchestrator's error-signature logic consume.
package validation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the validation gates the orchestrator runs in fixed order.
type Kind string

// Validation kinds, in the fixed execution order spec.md §4.6 mandates.
const (
	KindCompile     Kind = "COMPILE"
	KindUnitTest    Kind = "UNIT_TEST"
	KindIntegration Kind = "INTEGRATION_TEST"
	KindRuntime     Kind = "RUNTIME"
)

// Order is the fixed gate sequence; the first failing gate short-circuits
// the rest (spec.md §4.6 "Ordering and tie-break rules").
var Order = []Kind{KindCompile, KindUnitTest, KindIntegration, KindRuntime}

// Severity classifies a ParsedError.
type Severity string

// Severity values.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParsedError is one structured diagnostic extracted from a validation run.
type ParsedError struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Report is the structured, append-only result of one sandbox run.
//
// Invariant: Passed implies ErrorCount == 0. Reports are never mutated
// after insertion into a store.
type Report struct {
	ReportID      string        `json:"report_id"`
	JobID         string        `json:"job_id"`
	Round         int           `json:"round"`
	ValidationType Kind         `json:"validation_type"`
	Passed        bool          `json:"passed"`
	Command       string        `json:"command"`
	ExitCode      int           `json:"exit_code"`
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	DurationMs    int64         `json:"duration_ms"`
	ParsedErrors  []ParsedError `json:"parsed_errors"`
	ErrorCount    int           `json:"error_count"`
	WarningCount  int           `json:"warning_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewReport constructs a Report, deriving ErrorCount/WarningCount from
// parsedErrors and enforcing the Passed⇒ErrorCount==0 invariant: a caller
// claiming Passed with a non-zero error count is a programmer error and
// NewReport corrects Passed to false rather than accept an inconsistent
// report (reports are never mutated after insert, so this must be caught
// at construction time).
func NewReport(jobID string, round int, kind Kind, passed bool, command string, exitCode int, stdout, stderr string, durationMs int64, parsedErrors []ParsedError) *Report {
	var errCount, warnCount int
	for _, e := range parsedErrors {
		switch e.Severity {
		case SeverityError:
			errCount++
		case SeverityWarning:
			warnCount++
		}
	}
	if errCount > 0 {
		passed = false
	}
	return &Report{
		ReportID:       uuid.NewString(),
		JobID:          jobID,
		Round:          round,
		ValidationType: kind,
		Passed:         passed,
		Command:        command,
		ExitCode:       exitCode,
		Stdout:         stdout,
		Stderr:         stderr,
		DurationMs:     durationMs,
		ParsedErrors:   parsedErrors,
		ErrorCount:     errCount,
		WarningCount:   warnCount,
		CreatedAt:      time.Now().UTC(),
	}
}

// FailingFiles returns the deduplicated set of file paths referenced by
// error-severity ParsedErrors, in first-seen order. This is the "failing
// artifacts" set spec.md §4.6(e) hands to the Coach.
func (r *Report) FailingFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, e := range r.ParsedErrors {
		if e.Severity != SeverityError || e.File == "" {
			continue
		}
		if !seen[e.File] {
			seen[e.File] = true
			files = append(files, e.File)
		}
	}
	return files
}

// CombinedOutput concatenates stdout and stderr for signature computation,
// matching ErrorSignature.computeCombined's expected input shape.
func (r *Report) CombinedOutput() string {
	return r.Stdout + r.Stderr
}

// Store is the append-only persistence contract for validation reports
// (spec.md §6: "Append-only insert of validation reports").
type Store interface {
	// Append inserts a report. Reports are never mutated after insertion.
	Append(report *Report) error

	// ListByJob returns every report recorded for a job, in insertion order.
	ListByJob(jobID string) ([]*Report, error)
}

// MemoryStore is an in-memory reference Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	reports map[string][]*Report
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string][]*Report)}
}

// Append implements Store.
func (s *MemoryStore) Append(report *Report) error {
	if report == nil {
		return fmt.Errorf("validation: nil report")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.JobID] = append(s.reports[report.JobID], report)
	return nil
}

// ListByJob implements Store.
func (s *MemoryStore) ListByJob(jobID string) ([]*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Report(nil), s.reports[jobID]...), nil
}
