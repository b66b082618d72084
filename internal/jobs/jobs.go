// Package jobs implements the Job record and JobStore (spec.md §3/§4.5,
// component C6): the durable record of one generation run, its status DAG,
// and contract-lock bookkeeping. Grounded on the teacher's
// internal/batch.QueueEntry (structured record with status constants and
// JSON-friendly mutation) generalized from a queue entry to a job.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is one of the job lifecycle states (spec.md §4.7).
type Status string

// Job statuses, forming the DAG described in spec.md §4.7.
const (
	StatusQueued    Status = "QUEUED"
	StatusPlanning  Status = "PLANNING"
	StatusCoding    Status = "CODING"
	StatusTesting   Status = "TESTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// legalTransitions enumerates the only transitions spec.md §4.7 permits.
var legalTransitions = map[Status]map[Status]bool{
	StatusQueued:    {StatusPlanning: true},
	StatusPlanning:  {StatusCoding: true, StatusFailed: true},
	StatusCoding:    {StatusTesting: true, StatusFailed: true},
	StatusTesting:   {StatusTesting: true, StatusCompleted: true, StatusFailed: true},
	StatusCompleted: {},
	StatusFailed:    {},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal
// status transition per the DAG in spec.md §4.7.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

// SandboxProvider enumerates recognized sandbox backends. The orchestrator
// core only consumes SandboxPort (spec.md §4.4); this is metadata recorded
// on the job for operator visibility.
type SandboxProvider string

// Recognized sandbox providers.
const (
	ProviderE2B    SandboxProvider = "E2B"
	ProviderDocker SandboxProvider = "DOCKER"
	ProviderLocal  SandboxProvider = "LOCAL"
)

// TargetStack records the requested backend/frontend/database choice from
// the submission payload (spec.md §6 Ingress).
type TargetStack struct {
	Backend  string
	Frontend string
	Database string
}

// GenerationOptions records the per-job overrides accepted at submission
// (spec.md §6 Ingress: generationOptions).
type GenerationOptions struct {
	MaxRounds             int
	EnableIntegrationTests bool
}

// Job is the durable job record (spec.md §3).
//
// Invariants: status transitions follow the DAG in spec.md §4.7;
// currentRound <= maxRounds; once ContractLocked is true, ContractSpec and
// SchemaSpec are immutable; CompletedAt is set iff Status is COMPLETED or
// FAILED.
type Job struct {
	JobID       string
	Requirement string
	TenantID    string
	UserID      string

	Status       Status
	CurrentRound int
	MaxRounds    int

	ContractSpec     string
	SchemaSpec       string
	ContractLocked   bool
	ContractLockedAt time.Time

	SandboxID       string
	SandboxURL      string
	SandboxProvider SandboxProvider

	LastError  string
	ErrorCount int

	// TokensUsed is a non-authoritative operator-visibility counter
	// (SPEC_FULL.md §10 supplemented feature); it never drives orchestrator
	// decisions.
	TokensUsed int

	TargetStack       TargetStack
	GenerationOptions GenerationOptions

	// TemplateContext carries the submission payload's optional scaffold
	// hints (spec.md §6 Ingress) straight through to ArchitectAgent.Plan.
	TemplateContext map[string]string

	StartedAt   time.Time
	CompletedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultMaxRounds is the default per-job repair budget (spec.md §6).
const DefaultMaxRounds = 3

// New constructs a Job in the QUEUED state from a submission payload.
func New(requirement, tenantID, userID string, maxRounds int) *Job {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	now := time.Now().UTC()
	return &Job{
		JobID:       uuid.NewString(),
		Requirement: requirement,
		TenantID:    tenantID,
		UserID:      userID,
		Status:      StatusQueued,
		MaxRounds:   maxRounds,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsRunning reports whether the job is in a non-terminal state.
func (j *Job) IsRunning() bool {
	switch j.Status {
	case StatusPlanning, StatusCoding, StatusTesting:
		return true
	default:
		return false
	}
}

// IsFinished reports whether the job has reached a terminal state.
func (j *Job) IsFinished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ErrIllegalTransition is returned when a caller attempts a status change
// outside the DAG in spec.md §4.7.
var ErrIllegalTransition = fmt.Errorf("jobs: illegal status transition")

// ErrContractLocked is returned by SetContract after LockContract.
var ErrContractLocked = fmt.Errorf("jobs: contract is locked")

// ErrNotFound is returned by Store lookups that miss.
var ErrNotFound = fmt.Errorf("jobs: not found")

// Store is the durable JobStore contract (spec.md §4.5/§6). Updates to
// (status, currentRound, lastError, errorCount) must be a single atomic
// per-row update; LockContract is idempotent.
type Store interface {
	Create(job *Job) error
	Get(jobID string) (*Job, error)

	// UpdateStatus atomically transitions status and records round/error
	// bookkeeping in one step. Returns ErrIllegalTransition if the DAG
	// forbids the move.
	UpdateStatus(jobID string, status Status, currentRound int, lastError string, errorCount int) error

	// SetContract persists contractSpec/schemaSpec. Returns ErrContractLocked
	// if the job's contract has already been locked.
	SetContract(jobID, contractSpec, schemaSpec string) error

	// LockContract marks the contract immutable. Idempotent: locking an
	// already-locked job is a no-op, not an error.
	LockContract(jobID string) error

	// ListByStatus returns every job currently in the given status.
	ListByStatus(status Status) ([]*Job, error)
}

// MemoryStore is an in-memory reference Store implementation.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// Create implements Store.
func (s *MemoryStore) Create(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(jobID string, status Status, currentRound int, lastError string, errorCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, status)
	}

	j.Status = status
	j.CurrentRound = currentRound
	j.LastError = lastError
	j.ErrorCount = errorCount
	j.UpdatedAt = time.Now().UTC()

	if status == StatusPlanning && j.StartedAt.IsZero() {
		j.StartedAt = j.UpdatedAt
	}
	if j.IsFinished() {
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// SetContract implements Store.
func (s *MemoryStore) SetContract(jobID, contractSpec, schemaSpec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if j.ContractLocked {
		return ErrContractLocked
	}
	j.ContractSpec = contractSpec
	j.SchemaSpec = schemaSpec
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// LockContract implements Store.
func (s *MemoryStore) LockContract(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if j.ContractLocked {
		return nil
	}
	j.ContractLocked = true
	j.ContractLockedAt = time.Now().UTC()
	j.UpdatedAt = j.ContractLockedAt
	return nil
}

// ListByStatus implements Store.
func (s *MemoryStore) ListByStatus(status Status) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Job
	for _, j := range s.jobs {
		if j.Status == status {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}
