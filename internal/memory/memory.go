// Package memory implements SessionMemory (spec.md §3/§4.2, component C2):
// a per-job, in-memory-only record of repair attempts used to decide when
// the orchestrator should stop retrying. It is created at job start and
// discarded at job completion — never persisted, never shared across jobs,
// grounded on the same mutex-guarded state-machine shape as
// internal/llm.CircuitBreaker in the teacher, generalized from a
// closed/open/half-open breaker to a repair-attempt ledger.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// MaxHistoryDefault is the default cap on retained repair attempts
// (spec.md: MAX_HISTORY = 10).
const MaxHistoryDefault = 10

// MaxSameErrorToleranceDefault is the default number of consecutive
// identical-signature rounds tolerated before termination
// (spec.md: MAX_SAME_ERROR_TOLERANCE = 2).
const MaxSameErrorToleranceDefault = 2

// RepairAttempt records the outcome of one repair round.
type RepairAttempt struct {
	Round          int
	Timestamp      time.Time
	Files          []string
	Success        bool
	ErrorSignature string
	FixSummary     string
}

// Memory is the per-job SessionMemory record.
type Memory struct {
	mu sync.Mutex

	jobID string

	maxHistory           int
	maxSameErrorTolerance int

	history       []RepairAttempt
	sigCounts     map[string]int
	repairedFiles map[string]bool

	lastErrorSignature        string
	consecutiveSameErrorCount int
}

// Option configures a Memory at construction.
type Option func(*Memory)

// WithMaxHistory overrides MaxHistoryDefault.
func WithMaxHistory(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithMaxSameErrorTolerance overrides MaxSameErrorToleranceDefault.
func WithMaxSameErrorTolerance(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxSameErrorTolerance = n
		}
	}
}

// New creates a fresh SessionMemory for a job.
func New(jobID string, opts ...Option) *Memory {
	m := &Memory{
		jobID:                 jobID,
		maxHistory:            MaxHistoryDefault,
		maxSameErrorTolerance: MaxSameErrorToleranceDefault,
		sigCounts:             make(map[string]int),
		repairedFiles:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// JobID returns the job this memory belongs to.
func (m *Memory) JobID() string {
	return m.jobID
}

// RecordAttempt appends a repair attempt to history, evicting the oldest
// entry beyond maxHistory, and unions files into the repaired-files set.
func (m *Memory) RecordAttempt(round int, files []string, success bool, errSig, fixSummary string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, RepairAttempt{
		Round:          round,
		Timestamp:      time.Now().UTC(),
		Files:          append([]string(nil), files...),
		Success:        success,
		ErrorSignature: errSig,
		FixSummary:     fixSummary,
	})
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}
	for _, f := range files {
		m.repairedFiles[f] = true
	}
}

// RecordErrorSignature updates the consecutive-same-signature counter and
// reports whether the repetition threshold has just been reached.
func (m *Memory) RecordErrorSignature(sig string) (shouldStop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sigCounts[sig]++
	if sig == m.lastErrorSignature {
		m.consecutiveSameErrorCount++
	} else {
		m.lastErrorSignature = sig
		m.consecutiveSameErrorCount = 1
	}
	return m.consecutiveSameErrorCount >= m.maxSameErrorTolerance
}

// ShouldTerminate reports whether the orchestrator should give up: either
// the same error has recurred maxSameErrorTolerance times in a row, or at
// least 3 attempts are recorded with zero successes among them.
func (m *Memory) ShouldTerminate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shouldTerminateLocked()
}

func (m *Memory) shouldTerminateLocked() bool {
	if m.consecutiveSameErrorCount >= m.maxSameErrorTolerance {
		return true
	}
	if len(m.history) >= 3 {
		for _, a := range m.history {
			if a.Success {
				return false
			}
		}
		return true
	}
	return false
}

// TerminationReason explains which shouldTerminateLocked condition fired,
// for the orchestrator's SYSTEM log message (spec.md §4.6(d)). Returns ""
// if ShouldTerminate would currently report false.
func (m *Memory) TerminationReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveSameErrorCount >= m.maxSameErrorTolerance {
		return "consecutive identical errors"
	}
	if len(m.history) >= 3 {
		for _, a := range m.history {
			if a.Success {
				return ""
			}
		}
		return "all attempts unsuccessful"
	}
	return ""
}

// HasRepairedFile reports whether Coach has touched path in any prior round.
func (m *Memory) HasRepairedFile(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repairedFiles[path]
}

// AttemptCount returns the number of repair attempts recorded (bounded by
// maxHistory — older attempts beyond the cap are evicted and no longer
// counted, matching spec.md's "capped at MAX_HISTORY" eviction policy).
func (m *Memory) AttemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// SuccessCount returns the number of recorded attempts marked successful.
func (m *Memory) SuccessCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.history {
		if a.Success {
			n++
		}
	}
	return n
}

// BuildCoachContext renders a short briefing for the Coach agent: prior
// attempts, failed strategies grouped by error-kind, and — when the same
// error has recurred at or above the tolerance — an explicit warning to try
// a different strategy.
func (m *Memory) BuildCoachContext(describe func(signature string) string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if describe == nil {
		describe = func(s string) string { return s }
	}

	var sb strings.Builder
	if len(m.history) == 0 {
		sb.WriteString("No prior repair attempts for this job.\n")
	} else {
		sb.WriteString("Prior repair attempts:\n")
		for _, a := range m.history {
			status := "failed"
			if a.Success {
				status = "succeeded"
			}
			fmt.Fprintf(&sb, "  - round %d: %s (%s) touching %s\n",
				a.Round, status, describe(a.ErrorSignature), strings.Join(a.Files, ", "))
		}
	}

	failedByKind := make(map[string][]string)
	for _, a := range m.history {
		if a.Success {
			continue
		}
		kind := describe(a.ErrorSignature)
		if a.FixSummary != "" {
			failedByKind[kind] = append(failedByKind[kind], a.FixSummary)
		}
	}
	if len(failedByKind) > 0 {
		sb.WriteString("Strategies already tried and failed, by error kind:\n")
		for kind, summaries := range failedByKind {
			fmt.Fprintf(&sb, "  - %s: %s\n", kind, strings.Join(summaries, "; "))
		}
	}

	if m.consecutiveSameErrorCount >= m.maxSameErrorTolerance {
		sb.WriteString("WARNING: the same error has recurred across consecutive rounds. ")
		sb.WriteString("Do not repeat the previous fix — try a completely different strategy.\n")
	}

	return sb.String()
}
